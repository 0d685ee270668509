// Package ot holds the operational transformation strategies used by
// EditSession.ApplyOperation.
package ot

import "github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"

// Positional adjusts positions and lengths so an incoming operation keeps its
// intent after historical operations have been applied.
//
// Tie-breaks:
//   - two inserts at the same position: the one whose author id sorts first
//     is placed first.
//   - a delete that overlaps an already applied delete is truncated to the span
//     that still exists; a fully covered delete becomes a zero-length no-op.
//   - an insert landing strictly inside a pending delete range is swallowed by
//     the delete (the delete grows to cover it).
type Positional struct{}

func NewPositional() Positional { return Positional{} }

func (Positional) TransformAgainstMultiple(incoming domain.TextOperation, historical []domain.TextOperation) domain.TextOperation {
	out := incoming
	for _, h := range historical {
		out = Positional{}.Transform(out, h)
	}
	return out
}

func (Positional) Transform(incoming, historical domain.TextOperation) domain.TextOperation {
	if historical.IsNoop() || incoming.IsNoop() {
		return incoming
	}
	switch {
	case incoming.IsInsert() && historical.IsInsert():
		return insertInsert(incoming, historical)
	case incoming.IsInsert() && historical.IsDelete():
		return insertDelete(incoming, historical)
	case incoming.IsDelete() && historical.IsInsert():
		return deleteInsert(incoming, historical)
	case incoming.IsDelete() && historical.IsDelete():
		return deleteDelete(incoming, historical)
	}
	return incoming
}

func insertInsert(in, h domain.TextOperation) domain.TextOperation {
	if h.Position() < in.Position() ||
		(h.Position() == in.Position() && h.AuthorID().String() <= in.AuthorID().String()) {
		return in.WithPosition(in.Position() + h.Length())
	}
	return in
}

func insertDelete(in, h domain.TextOperation) domain.TextOperation {
	start, end := h.Position(), h.Position()+h.Length()
	switch {
	case in.Position() <= start:
		return in
	case in.Position() >= end:
		return in.WithPosition(in.Position() - h.Length())
	default:
		return in.WithPosition(start)
	}
}

func deleteInsert(in, h domain.TextOperation) domain.TextOperation {
	start, end := in.Position(), in.Position()+in.Length()
	switch {
	case h.Position() <= start:
		return in.WithPosition(start + h.Length())
	case h.Position() >= end:
		return in
	default:
		return in.WithLength(in.Length() + h.Length())
	}
}

func deleteDelete(in, h domain.TextOperation) domain.TextOperation {
	inStart, inEnd := in.Position(), in.Position()+in.Length()
	hStart, hEnd := h.Position(), h.Position()+h.Length()

	switch {
	case inEnd <= hStart:
		return in
	case inStart >= hEnd:
		return in.WithPosition(inStart - h.Length())
	}

	// Overlap: keep only the part of the incoming range that h did not remove.
	overlap := min(inEnd, hEnd) - max(inStart, hStart)
	return in.WithPosition(min(inStart, hStart)).WithLength(in.Length() - overlap)
}

// Passthrough returns the incoming operation unchanged. It satisfies the
// contract for sessions that never see concurrent edits.
type Passthrough struct{}

func (Passthrough) Transform(incoming, _ domain.TextOperation) domain.TextOperation {
	return incoming
}

func (Passthrough) TransformAgainstMultiple(incoming domain.TextOperation, _ []domain.TextOperation) domain.TextOperation {
	return incoming
}

var (
	_ domain.Transformer = Positional{}
	_ domain.Transformer = Passthrough{}
)
