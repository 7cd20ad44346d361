// Package field provides fluent builders for describing entity columns.
//
// Field names are column names (snake_case). Records are keyed by them
// and so are the conditions of scopes, associations and queries:
//
//	field.Int64("user_id")  // column user_id
//	field.String("email")   // column email
//
// # Field Types
//
//	// String fields
//	field.String("name")
//	field.Text("body")
//
//	// Numeric fields
//	field.Int("age")
//	field.Int64("user_id")
//	field.Float64("weight")
//
//	// Other scalar fields
//	field.Bool("lost")
//	field.Time("adopted_at")
//	field.UUID("id")
//	field.Bytes("avatar")
//
//	// Enum fields accept only the listed values
//	field.Enum("species").Values("cat", "dog", "frog")
//
//	// JSON fields are stored as a document
//	field.JSON("settings")
//
// Values are converted between Go and driver representations by the
// codec of the registry; see schema.WithCodec.
//
// # Field Options
//
//	field.String("nickname").
//	    Optional().            // Not required on create
//	    Nillable().            // Nullable column
//	    Immutable().           // Cannot be updated
//	    Default("unknown").    // Literal or func() T default
//	    StorageKey("nick").    // Column name differs from field name
//	    Comment("shown on tags")
//
// Function defaults are called for every insert:
//
//	field.UUID("id").Default(uuid.New).Immutable()
//	field.Time("seen_at").UpdateDefault(time.Now)
//
// # Validation
//
// Validators run on create, and on update for the columns that changed.
// Every violation is collected and reported under the column name, so a
// single save reports all of them:
//
//	// String validators
//	field.String("name").NotEmpty().MinLen(2).MaxLen(100)
//	field.String("email").Match(emailRegex)
//
//	// Numeric validators
//	field.Int64("rating").Range(1, 5)
//	field.Float64("price").Positive()
//	field.Int("age").NonNegative().Max(150)
//
// Custom validators return an error whose message becomes the violation:
//
//	field.String("slug").Validate(func(v any) error {
//	    if strings.Contains(v.(string), " ") {
//	        return errors.New("can't contain spaces")
//	    }
//	    return nil
//	})
//
// Columns that are neither Optional nor Nillable and have no default are
// required on create and reported as "can't be blank".
//
// # Roles
//
// Some columns are maintained by the persistence layer. They are stamped,
// marked or renumbered without the caller setting them:
//
//	field.Time("created_at").CreateTime()
//	field.Time("updated_at").UpdateTime()
//	field.Time("deleted_at").SoftDelete()
//	field.Int("position").Position("owner_id")
//
// A position column keeps rows numbered 1..n within the rows sharing the
// scope columns. New rows are appended; soft-deleted rows leave the
// sequence and restored ones rejoin at its end.
package field
