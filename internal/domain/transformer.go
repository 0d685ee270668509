package domain

// Transformer reconciles an incoming operation with operations applied after
// its baseline version. Implementations must be deterministic.
type Transformer interface {
	Transform(incoming, historical TextOperation) TextOperation
	// TransformAgainstMultiple folds Transform over historical in the given order.
	TransformAgainstMultiple(incoming TextOperation, historical []TextOperation) TextOperation
}
