// Package graph resolves association paths into join plans.
//
// A path names associations walked left to right from a source entity
// type. Each segment may carry caller conditions, an alias and, for a
// polymorphic belongs-to, the concrete target type:
//
//	plan, err := graph.Resolve(pet,
//		graph.ParsePath("collars.balloon"),
//		graph.ParsePath("collar_balloons").AndNot(where.Clause{"color": "red"}),
//	)
//
// The plan lists steps parents first. Direct associations produce one
// step; through associations splice hidden steps for the through chain
// before the step of the source association, whose rows are grafted onto
// the step the through association started from. Self conditions always
// compare against that originating step.
//
// Resolution fails with the typed errors of the root package:
// UnknownAssociationError, UnknownEntityError, CyclicAssociationError,
// MissingThroughSourceError, MissingRequiredConditionError,
// AmbiguousPolymorphicError and DuplicateAliasError.
package graph
