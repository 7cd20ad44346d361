package dream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("dream: record not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("dream: record not singular")

	// ErrTxDone is returned when a finished transaction context is used again.
	ErrTxDone = errors.New("dream: transaction has already been committed or rolled back")
)

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("dream: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("dream: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity name.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("dream: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("dream: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError is returned when reading an association that was never
// preloaded or hydrated on a record.
type NotLoadedError struct {
	Entity      string
	Association string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("dream: association %q of %s was not loaded", e.Association, e.Entity)
}

// NewNotLoadedError returns a new NotLoadedError.
func NewNotLoadedError(entity, association string) *NotLoadedError {
	return &NotLoadedError{Entity: entity, Association: association}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	var e *NotLoadedError
	return errors.As(err, &e)
}

// UnknownAssociationError is returned when a path names an association the
// entity does not declare.
type UnknownAssociationError struct {
	Entity      string
	Association string
	Valid       []string
}

// Error returns the error string.
func (e *UnknownAssociationError) Error() string {
	return fmt.Sprintf("dream: unknown association %q on %s (valid: %s)",
		e.Association, e.Entity, listOrNone(e.Valid))
}

// IsUnknownAssociation returns true if the error is an UnknownAssociationError.
func IsUnknownAssociation(err error) bool {
	var e *UnknownAssociationError
	return errors.As(err, &e)
}

// UnknownEntityError is returned when a name does not match a registered entity.
type UnknownEntityError struct {
	Name string
	// Referrer names the association that pointed at Name, if any.
	Referrer string
	Valid    []string
}

// Error returns the error string.
func (e *UnknownEntityError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("dream: %s targets unregistered entity %q (registered: %s)",
			e.Referrer, e.Name, listOrNone(e.Valid))
	}
	return fmt.Sprintf("dream: unregistered entity %q (registered: %s)", e.Name, listOrNone(e.Valid))
}

// IsUnknownEntity returns true if the error is an UnknownEntityError.
func IsUnknownEntity(err error) bool {
	var e *UnknownEntityError
	return errors.As(err, &e)
}

// CyclicAssociationError is returned when a through chain leads back to
// an association that is already being resolved.
type CyclicAssociationError struct {
	Entity      string
	Association string
	Chain       []string
}

// Error returns the error string.
func (e *CyclicAssociationError) Error() string {
	return fmt.Sprintf("dream: association %q on %s is cyclic (%s)",
		e.Association, e.Entity, strings.Join(e.Chain, " -> "))
}

// IsCyclicAssociation returns true if the error is a CyclicAssociationError.
func IsCyclicAssociation(err error) bool {
	var e *CyclicAssociationError
	return errors.As(err, &e)
}

// MissingThroughSourceError is returned when the source of a through
// association does not exist on the intermediate entity.
type MissingThroughSourceError struct {
	Entity       string
	Association  string
	Intermediate string
	Source       string
	Valid        []string
}

// Error returns the error string.
func (e *MissingThroughSourceError) Error() string {
	return fmt.Sprintf("dream: %s.%s expects source %q on %s (valid: %s)",
		e.Entity, e.Association, e.Source, e.Intermediate, listOrNone(e.Valid))
}

// IsMissingThroughSource returns true if the error is a MissingThroughSourceError.
func IsMissingThroughSource(err error) bool {
	var e *MissingThroughSourceError
	return errors.As(err, &e)
}

// MissingRequiredConditionError is returned when an association declares
// required on-clause keys that the caller did not supply.
type MissingRequiredConditionError struct {
	Entity      string
	Association string
	Missing     []string
}

// Error returns the error string.
func (e *MissingRequiredConditionError) Error() string {
	return fmt.Sprintf("dream: %s.%s requires on-clause values for: %s",
		e.Entity, e.Association, strings.Join(e.Missing, ", "))
}

// IsMissingRequiredCondition returns true if the error is a MissingRequiredConditionError.
func IsMissingRequiredCondition(err error) bool {
	var e *MissingRequiredConditionError
	return errors.As(err, &e)
}

// MissingPassthroughValueError is returned when a condition references a
// passthrough value the caller did not provide.
type MissingPassthroughValueError struct {
	Name   string
	Column string
}

// Error returns the error string.
func (e *MissingPassthroughValueError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("dream: passthrough value %q required by column %q was not provided", e.Name, e.Column)
	}
	return fmt.Sprintf("dream: passthrough value %q was not provided", e.Name)
}

// IsMissingPassthroughValue returns true if the error is a MissingPassthroughValueError.
func IsMissingPassthroughValue(err error) bool {
	var e *MissingPassthroughValueError
	return errors.As(err, &e)
}

// AmbiguousPolymorphicError is returned when a polymorphic belongs-to is
// joined without naming the concrete target type.
type AmbiguousPolymorphicError struct {
	Entity      string
	Association string
	Candidates  []string
}

// Error returns the error string.
func (e *AmbiguousPolymorphicError) Error() string {
	return fmt.Sprintf("dream: %s.%s is polymorphic; choose one of: %s",
		e.Entity, e.Association, listOrNone(e.Candidates))
}

// UnknownVariantError is returned when a single-table-inheritance row
// carries a discriminator that is not a registered variant.
type UnknownVariantError struct {
	Entity string
	Value  string
	Known  []string
}

// Error returns the error string.
func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("dream: %s has no variant %q (known: %s)", e.Entity, e.Value, listOrNone(e.Known))
}

// IsUnknownVariant returns true if the error is an UnknownVariantError.
func IsUnknownVariant(err error) bool {
	var e *UnknownVariantError
	return errors.As(err, &e)
}

// DuplicateAliasError is returned when two join steps claim the same alias.
type DuplicateAliasError struct {
	Alias string
}

// Error returns the error string.
func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("dream: join alias %q is used more than once", e.Alias)
}

// ValidationFailedError carries every violation found on a record.
type ValidationFailedError struct {
	Entity     string
	Violations map[string][]string
}

// Error returns the error string.
func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("dream: validation failed for %s: %s", e.Entity, strings.Join(e.FullMessages(), "; "))
}

// Add records a violation for a field.
func (e *ValidationFailedError) Add(field, msg string) {
	if e.Violations == nil {
		e.Violations = make(map[string][]string)
	}
	e.Violations[field] = append(e.Violations[field], msg)
}

// Empty reports whether no violation was recorded.
func (e *ValidationFailedError) Empty() bool {
	return len(e.Violations) == 0
}

// FullMessages returns human readable messages sorted by field name,
// e.g. "First Name can't be blank".
func (e *ValidationFailedError) FullMessages() []string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	title := cases.Title(language.English)
	var out []string
	for _, f := range fields {
		name := title.String(strings.ReplaceAll(f, "_", " "))
		for _, msg := range e.Violations[f] {
			out = append(out, name+" "+msg)
		}
	}
	return out
}

// IsValidationFailed returns true if the error is a ValidationFailedError.
func IsValidationFailed(err error) bool {
	var e *ValidationFailedError
	return errors.As(err, &e)
}

// PersistenceKind classifies the driver failure behind a PersistenceError.
type PersistenceKind uint8

// Persistence failure kinds.
const (
	KindUnknown PersistenceKind = iota
	KindUniqueViolation
	KindForeignKeyViolation
	KindCheckViolation
	KindTimeout
)

var kindNames = [...]string{"unknown", "unique violation", "foreign key violation", "check violation", "timeout"}

// String returns the kind name.
func (k PersistenceKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("PersistenceKind(%d)", k)
}

// PersistenceError wraps a database driver failure that happened while
// reading or writing a record.
type PersistenceError struct {
	Entity string
	Op     Op
	Kind   PersistenceKind
	Err    error
}

// Error returns the error string.
func (e *PersistenceError) Error() string {
	if e.Kind != KindUnknown {
		return fmt.Sprintf("dream: %s %s: %s: %v", e.Op, e.Entity, e.Kind, e.Err)
	}
	return fmt.Sprintf("dream: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err. Context deadline errors are classified as
// timeouts; other kinds are set by the caller.
func NewPersistenceError(entity string, op Op, kind PersistenceKind, err error) *PersistenceError {
	if kind == KindUnknown && errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &PersistenceError{Entity: entity, Op: op, Kind: kind, Err: err}
}

// IsPersistenceError returns true if the error is a PersistenceError.
func IsPersistenceError(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}

// IsConstraintError returns true if the error is a PersistenceError caused by
// a unique, foreign key or check constraint.
func IsConstraintError(err error) bool {
	var e *PersistenceError
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindUniqueViolation, KindForeignKeyViolation, KindCheckViolation:
		return true
	}
	return false
}

// IllegalBulkOperationError is returned when update-all or delete-all is
// called on a query that joins or is scoped to an association.
type IllegalBulkOperationError struct {
	Entity string
	Op     Op
	Reason string
}

// Error returns the error string.
func (e *IllegalBulkOperationError) Error() string {
	return fmt.Sprintf("dream: %s on %s is not allowed: %s", e.Op, e.Entity, e.Reason)
}

// IsIllegalBulkOperation returns true if the error is an IllegalBulkOperationError.
func IsIllegalBulkOperation(err error) bool {
	var e *IllegalBulkOperationError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("dream: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// CommitHookError is returned by a successful commit whose deferred
// commit hooks failed. The transaction itself is durable.
type CommitHookError struct {
	Err error
}

// Error returns the error string.
func (e *CommitHookError) Error() string {
	return fmt.Sprintf("dream: commit hooks failed after commit: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CommitHookError) Unwrap() error {
	return e.Err
}

// IsCommitHookError returns true if the error is a CommitHookError.
func IsCommitHookError(err error) bool {
	var e *CommitHookError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "dream: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("dream: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string
	Op     string
	Err    error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("dream: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("dream: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	var e *QueryError
	return errors.As(err, &e)
}

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Entity string
	Op     string
	Err    error
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	return fmt.Sprintf("dream: privacy denied %s on %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying decision.
func (e *PrivacyError) Unwrap() error {
	return e.Err
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	var e *PrivacyError
	return errors.As(err, &e)
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
