package types

import "fmt"

type Magic uint32

const (
	// Magic numbers used by Code Signing
	MAGIC_REQUIREMENT               Magic = 0xfade0c00 // single Requirement blob
	MAGIC_REQUIREMENTS              Magic = 0xfade0c01 // Requirements vector (internal requirements)
	MAGIC_CODEDIRECTORY             Magic = 0xfade0c02 // CodeDirectory blob
	MAGIC_EMBEDDED_SIGNATURE        Magic = 0xfade0cc0 // embedded form of signature data
	MAGIC_EMBEDDED_SIGNATURE_OLD    Magic = 0xfade0b02 /* XXX */
	MAGIC_LIBRARY_DEPENDENCY_BLOB   Magic = 0xfade0c05
	MAGIC_EMBEDDED_ENTITLEMENTS     Magic = 0xfade7171 /* embedded entitlements */
	MAGIC_EMBEDDED_ENTITLEMENTS_DER Magic = 0xfade7172 /* embedded entitlements */
	MAGIC_DETACHED_SIGNATURE        Magic = 0xfade0cc1 // multi-arch collection of embedded signatures
	MAGIC_BLOBWRAPPER               Magic = 0xfade0b01 // used for the cms blob
)

func (cm Magic) String() string {
	switch cm {
	case MAGIC_REQUIREMENT:
		return "Requirement"
	case MAGIC_REQUIREMENTS:
		return "Requirements"
	case MAGIC_CODEDIRECTORY:
		return "Codedirectory"
	case MAGIC_EMBEDDED_SIGNATURE:
		return "Embedded Signature"
	case MAGIC_EMBEDDED_SIGNATURE_OLD:
		return "Embedded Signature (Old)"
	case MAGIC_LIBRARY_DEPENDENCY_BLOB:
		return "Library Dependency Blob"
	case MAGIC_EMBEDDED_ENTITLEMENTS:
		return "Embedded Entitlements"
	case MAGIC_EMBEDDED_ENTITLEMENTS_DER:
		return "Embedded Entitlements (DER)"
	case MAGIC_DETACHED_SIGNATURE:
		return "Detached Signature"
	case MAGIC_BLOBWRAPPER:
		return "Blob Wrapper"
	default:
		return fmt.Sprintf("Magic(%#x)", uint32(cm))
	}
}

// On-disk sizes; all code signing structures are big-endian.
const (
	SbHeaderSize   = 12
	BlobIndexSize  = 8
	BlobHeaderSize = 8
)

type SbHeader struct {
	Magic  Magic  // magic number
	Length uint32 // total length of SuperBlob
	Count  uint32 // number of index entries following
}

type SlotType uint32

const (
	CSSLOT_CODEDIRECTORY              SlotType = 0
	CSSLOT_INFOSLOT                   SlotType = 1       // Info.plist
	CSSLOT_REQUIREMENTS               SlotType = 2       // internal requirements
	CSSLOT_RESOURCEDIR                SlotType = 3       // resource directory
	CSSLOT_APPLICATION                SlotType = 4       // Application specific slot/Top-level directory list
	CSSLOT_ENTITLEMENTS               SlotType = 5       // embedded entitlement configuration
	CSSLOT_REP_SPECIFIC               SlotType = 6       // for use by disk images
	CSSLOT_ENTITLEMENTS_DER           SlotType = 7       // DER representation of entitlements plist
	CSSLOT_ALTERNATE_CODEDIRECTORIES  SlotType = 0x1000  // Used for expressing a code directory using an alternate digest type.
	CSSLOT_ALTERNATE_CODEDIRECTORIES1 SlotType = 0x1001  // Used for expressing a code directory using an alternate digest type.
	CSSLOT_ALTERNATE_CODEDIRECTORIES2 SlotType = 0x1002  // Used for expressing a code directory using an alternate digest type.
	CSSLOT_ALTERNATE_CODEDIRECTORIES3 SlotType = 0x1003  // Used for expressing a code directory using an alternate digest type.
	CSSLOT_ALTERNATE_CODEDIRECTORIES4 SlotType = 0x1004  // Used for expressing a code directory using an alternate digest type.
	CSSLOT_CMS_SIGNATURE              SlotType = 0x10000 // CMS signature
	CSSLOT_IDENTIFICATIONSLOT         SlotType = 0x10001 // identification blob; used for detached signature
	CSSLOT_TICKETSLOT                 SlotType = 0x10002 // Notarization ticket
)

func (c SlotType) String() string {
	switch c {
	case CSSLOT_CODEDIRECTORY:
		return "CodeDirectory"
	case CSSLOT_INFOSLOT:
		return "Bound Info.plist"
	case CSSLOT_REQUIREMENTS:
		return "Requirements Blob"
	case CSSLOT_RESOURCEDIR:
		return "Resource Directory"
	case CSSLOT_APPLICATION:
		return "Application Specific"
	case CSSLOT_ENTITLEMENTS:
		return "Entitlements Plist"
	case CSSLOT_REP_SPECIFIC:
		return "DMG Specific"
	case CSSLOT_ENTITLEMENTS_DER:
		return "Entitlements ASN1/DER"
	case CSSLOT_ALTERNATE_CODEDIRECTORIES:
		return "Alternate CodeDirectories 0"
	case CSSLOT_ALTERNATE_CODEDIRECTORIES1:
		return "Alternate CodeDirectories 1"
	case CSSLOT_ALTERNATE_CODEDIRECTORIES2:
		return "Alternate CodeDirectories 2"
	case CSSLOT_ALTERNATE_CODEDIRECTORIES3:
		return "Alternate CodeDirectories 3"
	case CSSLOT_ALTERNATE_CODEDIRECTORIES4:
		return "Alternate CodeDirectories 4"
	case CSSLOT_CMS_SIGNATURE:
		return "CMS (RFC3852) signature"
	case CSSLOT_IDENTIFICATIONSLOT:
		return "IdentificationSlot"
	case CSSLOT_TICKETSLOT:
		return "TicketSlot"
	default:
		return fmt.Sprintf("Unknown SlotType: %d", c)
	}
}

// A BlobKind is the coarse classification of an index entry. Every slot type
// maps to exactly one kind.
type BlobKind uint8

const (
	KindCodeDirectory BlobKind = iota
	KindInfoSlots
	KindRequirements
	KindResourceDirectory
	KindApplicationSpecific
	KindEntitlements
	KindUnknown
)

func (k BlobKind) String() string {
	switch k {
	case KindCodeDirectory:
		return "CodeDirectory"
	case KindInfoSlots:
		return "InfoSlots"
	case KindRequirements:
		return "Requirements"
	case KindResourceDirectory:
		return "ResourceDirectory"
	case KindApplicationSpecific:
		return "ApplicationSpecific"
	case KindEntitlements:
		return "Entitlements"
	default:
		return "Unknown"
	}
}

// Kind classifies the slot type.
func (c SlotType) Kind() BlobKind {
	if c <= CSSLOT_ENTITLEMENTS {
		return BlobKind(c)
	}
	return KindUnknown
}
