// Package linalg provides the numerics used by the incremental basis core.
//
// A Vector or Matrix holds the rows owned by one rank of a collective group.
// Operations that need global information (dot products, norms, Gram
// matrices) reduce local partial results through the group's Communicator,
// so every rank receives bit-identical values.
//
// Small replicated matrices are plain gonum *mat.Dense values. The SVDSolver
// interface factors them; GolubKahan uses gonum's LAPACK port and Jacobi is a
// one-sided Jacobi solver for callers that want a pure rotation method.
//
//	u := linalg.NewMatrix(comm, localRows, 16)
//	_ = u.AppendColumn(col)
//	p, _ := u.TransMulVec(ctx, x)
//	u.MulVecSub(x, p)
package linalg
