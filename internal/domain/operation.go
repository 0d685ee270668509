package domain

import (
	"fmt"
	"time"
)

type OperationType string

const (
	OperationInsert OperationType = "insert"
	OperationDelete OperationType = "delete"
)

func ParseOperationType(s string) (OperationType, error) {
	switch OperationType(s) {
	case OperationInsert, OperationDelete:
		return OperationType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, s)
	}
}

// TextOperation Invariants:
// 1. Position >= 0 and Version >= 0.
// 2. Insert carries non-empty Text; Delete carries Length > 0.
// 3. Immutable: WithPosition/WithLength/WithVersion return copies.
//
// Version is the aggregate version the author observed when producing the
// operation. Once stored in a session's history it is restamped to the
// version the operation was applied at.
type TextOperation struct {
	typ       OperationType
	position  int
	text      string
	length    int
	version   int
	author    ParticipantID
	timestamp time.Time
}

func NewInsert(position int, text string, version int, author ParticipantID) (TextOperation, error) {
	if err := validateCommon(position, version, author); err != nil {
		return TextOperation{}, err
	}
	if text == "" {
		return TextOperation{}, fmt.Errorf("%w: insert text must not be empty", ErrValidation)
	}
	return TextOperation{
		typ:       OperationInsert,
		position:  position,
		text:      text,
		length:    textLen(text),
		version:   version,
		author:    author,
		timestamp: time.Now().UTC(),
	}, nil
}

func NewDelete(position, length, version int, author ParticipantID) (TextOperation, error) {
	if err := validateCommon(position, version, author); err != nil {
		return TextOperation{}, err
	}
	if length <= 0 {
		return TextOperation{}, fmt.Errorf("%w: delete length must be positive", ErrValidation)
	}
	return TextOperation{
		typ:       OperationDelete,
		position:  position,
		length:    length,
		version:   version,
		author:    author,
		timestamp: time.Now().UTC(),
	}, nil
}

// RestoreOperation rebuilds a stored operation, keeping its timestamp. Unlike
// NewDelete it accepts a zero length, which transformation can produce.
func RestoreOperation(typ OperationType, position int, text string, length, version int, author ParticipantID, ts time.Time) (TextOperation, error) {
	if err := validateCommon(position, version, author); err != nil {
		return TextOperation{}, err
	}
	op := TextOperation{typ: typ, position: position, version: version, author: author, timestamp: ts}
	switch typ {
	case OperationInsert:
		if text == "" {
			return TextOperation{}, fmt.Errorf("%w: insert text must not be empty", ErrValidation)
		}
		op.text = text
		op.length = textLen(text)
	case OperationDelete:
		if length < 0 {
			return TextOperation{}, fmt.Errorf("%w: delete length must not be negative", ErrValidation)
		}
		op.length = length
	default:
		return TextOperation{}, fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, typ)
	}
	return op, nil
}

func validateCommon(position, version int, author ParticipantID) error {
	if position < 0 {
		return fmt.Errorf("%w: position must not be negative", ErrValidation)
	}
	if version < 0 {
		return fmt.Errorf("%w: version must not be negative", ErrValidation)
	}
	if author.IsZero() {
		return fmt.Errorf("%w: author id must not be empty", ErrValidation)
	}
	return nil
}

func (o TextOperation) Type() OperationType     { return o.typ }
func (o TextOperation) Position() int           { return o.position }
func (o TextOperation) Text() string            { return o.text }
func (o TextOperation) Version() int            { return o.version }
func (o TextOperation) AuthorID() ParticipantID { return o.author }
func (o TextOperation) Timestamp() time.Time    { return o.timestamp }

// Length is the number of code units the operation inserts or removes.
func (o TextOperation) Length() int { return o.length }

func (o TextOperation) IsInsert() bool { return o.typ == OperationInsert }
func (o TextOperation) IsDelete() bool { return o.typ == OperationDelete }

// IsNoop reports a delete that was reduced to nothing by transformation.
func (o TextOperation) IsNoop() bool { return o.typ == OperationDelete && o.length == 0 }

func (o TextOperation) WithPosition(position int) TextOperation {
	if position < 0 {
		position = 0
	}
	o.position = position
	return o
}

// WithLength only applies to deletes; a transformed delete may shrink to zero.
func (o TextOperation) WithLength(length int) TextOperation {
	if o.typ != OperationDelete {
		return o
	}
	if length < 0 {
		length = 0
	}
	o.length = length
	return o
}

func (o TextOperation) WithVersion(version int) TextOperation {
	o.version = version
	return o
}

// Apply runs the operation against content.
func (o TextOperation) Apply(c DocumentContent) (DocumentContent, error) {
	switch o.typ {
	case OperationInsert:
		return c.InsertAt(o.position, o.text)
	case OperationDelete:
		return c.DeleteAt(o.position, o.length)
	default:
		return c, fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, o.typ)
	}
}

func (o TextOperation) String() string {
	if o.typ == OperationInsert {
		return fmt.Sprintf("insert(%d,%q)@v%d", o.position, o.text, o.version)
	}
	return fmt.Sprintf("delete(%d,%d)@v%d", o.position, o.length, o.version)
}
