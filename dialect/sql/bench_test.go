package sql

import (
	"testing"

	"github.com/rvohealth/dream-sub006/dialect"
)

var benchDialects = []string{dialect.SQLite, dialect.MySQL, dialect.Postgres}

func BenchmarkSelectScoped(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Select().
					AppendSelectAs("pets.id", "id").
					AppendSelectAs("pets.name", "name").
					From(Table("pets")).
					Where(And(IsNull("pets.deleted_at"), In("pets.species", "cat", "dog"))).
					OrderBy(Asc("pets.name"), Asc("pets.id")).
					Limit(20).
					Query()
			}
		})
	}
}

func BenchmarkSelectHydrating(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				pets := Table("pets")
				collars := Table("collars").As("collars_1")
				balloons := Table("balloons").As("balloons_2")
				Dialect(d).Select().
					AppendSelectAs(pets.C("id"), "pets__id").
					AppendSelectAs(collars.C("id"), "collars_1__id").
					AppendSelectAs(balloons.C("id"), "balloons_2__id").
					From(pets).
					LeftJoin(collars).On(pets.C("id"), collars.C("pet_id")).
					OnP(And(IsNull(collars.C("deleted_at")), EQ(collars.C("hidden"), false))).
					LeftJoin(balloons).On(collars.C("balloon_id"), balloons.C("id")).
					OrderBy(Asc(pets.C("id")), Asc(collars.C("position"))).
					Query()
			}
		})
	}
}

func BenchmarkInSelect(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				sub := Dialect(d).Select("collars_1.id").
					From(Table("pets")).
					Join(Table("collars").As("collars_1")).On("pets.id", "collars_1.pet_id").
					Where(EQ("pets.id", 1))
				Dialect(d).Select("collars.id").
					From(Table("collars")).
					Where(And(EQ("collars.lost", true), InSelect("collars.id", sub))).
					Query()
			}
		})
	}
}

func BenchmarkBulkWrites(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Update("pets").
					Set("species", "frog").
					Set("updated_at", "2026-01-01 00:00:00").
					Where(And(IsNull("pets.deleted_at"), EQ("pets.species", "dog"))).
					Query()
				Dialect(d).Delete("collars").
					Where(Or(EQ("lost", true), NotIn("pet_id", 1, 2, 3))).
					Query()
			}
		})
	}
}
