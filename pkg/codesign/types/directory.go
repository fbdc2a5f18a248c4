package types

import (
	"strings"

	mtypes "github.com/appsworld/macho-dump/types"
)

type HashType uint8

const (
	PAGE_SIZE = 4096

	HASHTYPE_NOHASH           HashType = 0
	HASHTYPE_SHA1             HashType = 1
	HASHTYPE_SHA256           HashType = 2
	HASHTYPE_SHA256_TRUNCATED HashType = 3
	HASHTYPE_SHA384           HashType = 4
	HASHTYPE_SHA512           HashType = 5

	HASH_SIZE_SHA1             = 20
	HASH_SIZE_SHA256           = 32
	HASH_SIZE_SHA256_TRUNCATED = 20

	CDHASH_LEN    = 20 /* always - larger hashes are truncated */
	HASH_MAX_SIZE = 48 /* max size of the hash we'll support */
)

var csHashTypeStrings = []mtypes.IntName{
	{I: uint32(HASHTYPE_NOHASH), S: "No Hash"},
	{I: uint32(HASHTYPE_SHA1), S: "Sha1"},
	{I: uint32(HASHTYPE_SHA256), S: "Sha256"},
	{I: uint32(HASHTYPE_SHA256_TRUNCATED), S: "Sha256 (Truncated)"},
	{I: uint32(HASHTYPE_SHA384), S: "Sha384"},
	{I: uint32(HASHTYPE_SHA512), S: "Sha512"},
}

func (c HashType) String() string   { return mtypes.StringName(uint32(c), csHashTypeStrings, false) }
func (c HashType) GoString() string { return mtypes.StringName(uint32(c), csHashTypeStrings, true) }

type CDVersion uint32

const (
	EARLIEST_VERSION     CDVersion = 0x20001
	SUPPORTS_SCATTER     CDVersion = 0x20100
	SUPPORTS_TEAMID      CDVersion = 0x20200
	SUPPORTS_CODELIMIT64 CDVersion = 0x20300
	SUPPORTS_EXECSEG     CDVersion = 0x20400
	SUPPORTS_RUNTIME     CDVersion = 0x20500
	SUPPORTS_LINKAGE     CDVersion = 0x20600
	COMPATIBILITY_LIMIT  CDVersion = 0x2F000 // "version 3 with wiggle room"
)

var csVersionTypeStrings = []mtypes.IntName{
	{I: uint32(EARLIEST_VERSION), S: "Earliest"},
	{I: uint32(SUPPORTS_SCATTER), S: "Scatter"},
	{I: uint32(SUPPORTS_TEAMID), S: "TeamID"},
	{I: uint32(SUPPORTS_CODELIMIT64), S: "Codelimit64"},
	{I: uint32(SUPPORTS_EXECSEG), S: "ExecSeg"},
	{I: uint32(SUPPORTS_RUNTIME), S: "Runtime"},
	{I: uint32(SUPPORTS_LINKAGE), S: "Linkage"},
}

func (v CDVersion) String() string {
	return mtypes.StringName(uint32(v), csVersionTypeStrings, false)
}

type CDFlag uint32

const (
	NONE           CDFlag = 0x00000000 /* no flags */
	VALID          CDFlag = 0x00000001 /* dynamically valid */
	ADHOC          CDFlag = 0x00000002 /* ad hoc signed */
	GET_TASK_ALLOW CDFlag = 0x00000004 /* has get-task-allow entitlement */
	INSTALLER      CDFlag = 0x00000008 /* has installer entitlement */

	FORCED_LV       CDFlag = 0x00000010 /* Library Validation required by Hardened System Policy */
	INVALID_ALLOWED CDFlag = 0x00000020 /* (macOS Only) Page invalidation allowed by task port policy */

	HARD             CDFlag = 0x00000100 /* don't load invalid pages */
	KILL             CDFlag = 0x00000200 /* kill process if it becomes invalid */
	CHECK_EXPIRATION CDFlag = 0x00000400 /* force expiration checking */
	RESTRICT         CDFlag = 0x00000800 /* tell dyld to treat restricted */

	ENFORCEMENT            CDFlag = 0x00001000 /* require enforcement */
	REQUIRE_LV             CDFlag = 0x00002000 /* require library validation */
	ENTITLEMENTS_VALIDATED CDFlag = 0x00004000 /* code signature permits restricted entitlements */
	NVRAM_UNRESTRICTED     CDFlag = 0x00008000 /* has com.apple.rootless.restricted-nvram-variables.heritable entitlement */

	RUNTIME       CDFlag = 0x00010000 /* Apply hardened runtime policies */
	LINKER_SIGNED CDFlag = 0x00020000 // type property
)

var cdFlagStrings = []mtypes.IntName{
	{I: uint32(VALID), S: "Valid"},
	{I: uint32(ADHOC), S: "Adhoc"},
	{I: uint32(GET_TASK_ALLOW), S: "GetTaskAllow"},
	{I: uint32(INSTALLER), S: "Installer"},
	{I: uint32(FORCED_LV), S: "ForcedLv"},
	{I: uint32(INVALID_ALLOWED), S: "InvalidAllowed"},
	{I: uint32(HARD), S: "Hard"},
	{I: uint32(KILL), S: "Kill"},
	{I: uint32(CHECK_EXPIRATION), S: "CheckExpiration"},
	{I: uint32(RESTRICT), S: "Restrict"},
	{I: uint32(ENFORCEMENT), S: "Enforcement"},
	{I: uint32(REQUIRE_LV), S: "RequireLv"},
	{I: uint32(ENTITLEMENTS_VALIDATED), S: "EntitlementsValidated"},
	{I: uint32(NVRAM_UNRESTRICTED), S: "NvramUnrestricted"},
	{I: uint32(RUNTIME), S: "Runtime"},
	{I: uint32(LINKER_SIGNED), S: "LinkerSigned"},
}

// String lists the names of the set flag bits.
func (f CDFlag) String() string {
	if f == NONE {
		return "None"
	}
	var names []string
	for _, n := range cdFlagStrings {
		if uint32(f)&n.I != 0 {
			names = append(names, n.S)
		}
	}
	if len(names) == 0 {
		return mtypes.StringName(uint32(f), nil, false)
	}
	return strings.Join(names, ", ")
}

// CodeDirectoryHeaderSize is the size of the fields every CodeDirectory
// version carries.
const CodeDirectoryHeaderSize = 44

// CodeDirectoryType header
type CodeDirectoryType struct {
	Magic         Magic     // magic number (CSMAGIC_CODEDIRECTORY) */
	Length        uint32    // total length of CodeDirectory blob
	Version       CDVersion // compatibility version
	Flags         CDFlag    // setup and mode flags
	HashOffset    uint32    // offset of hash slot element at index zero
	IdentOffset   uint32    // offset of identifier string
	NSpecialSlots uint32    // number of special hash slots
	NCodeSlots    uint32    // number of ordinary (code) hash slots
	CodeLimit     uint32    // limit to main image signature range
	HashSize      uint8     // size of each hash in bytes
	HashType      HashType  // type of hash (cdHashType* constants)
	Platform      uint8     // platform identifier zero if not platform binary
	PageSize      uint8     // log2(page size in bytes) 0 => infinite
	Spare2        uint32    // unused (must be zero)

	/* Version 0x20100 */
	ScatterOffset uint32 /* offset of optional scatter vector */
	/* Version 0x20200 */
	TeamOffset uint32 /* offset of optional team identifier */
}
