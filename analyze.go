package macho

import (
	"context"

	"github.com/appsworld/macho-dump/pkg/codesign"
	"golang.org/x/sync/errgroup"
)

// A Report is everything the decoder extracts from one image. Each stage
// records its own error; a failed stage leaves its fields zero.
type Report struct {
	File *File

	Segments     []*Segment
	Dependencies []Dylib
	Tree         DependencyNode

	CodeSignature   *codesign.CodeSignature
	CodeSignErr     error
	Entitlements    *EntitlementBlob
	EntitlementsErr error
}

// Analyze runs the segment, dependency and signature stages of f
// concurrently. Stages only read the image, so they share it without locking.
// The returned error is non-nil only when ctx is cancelled.
func Analyze(ctx context.Context, f *File) (*Report, error) {
	r := &Report{File: f}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Segments = f.Segments()
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Dependencies = f.Dependencies()
		r.Tree = f.DependencyTree()
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.CodeSignature, r.CodeSignErr = f.CodeSignature()
		if r.CodeSignErr != nil {
			r.EntitlementsErr = r.CodeSignErr
			return nil
		}
		r.Entitlements, r.EntitlementsErr = f.findEntitlements(r.CodeSignature, entitlementsSlot, entitlementsMagic)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}
