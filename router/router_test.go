package router_test

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/examples/petstore"
	"github.com/rvohealth/dream-sub006/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	t.Parallel()
	reg := petstore.MustRegistry(nil)
	user, err := reg.Entity("User")
	require.NoError(t, err)
	pet, err := reg.Entity("Pet")
	require.NoError(t, err)

	tests := []struct {
		name     string
		kind     router.Kind
		entity   string
		override router.Target
		inTx     bool
		want     router.Target
	}{
		{name: "transaction beats override", kind: router.Read, entity: "User", override: router.Replica, inTx: true, want: router.Primary},
		{name: "transaction read", kind: router.Read, entity: "User", inTx: true, want: router.Primary},
		{name: "override", kind: router.Read, entity: "User", override: router.Primary, want: router.Primary},
		{name: "override write", kind: router.Write, entity: "Pet", override: router.Replica, want: router.Replica},
		{name: "write", kind: router.Write, entity: "User", want: router.Primary},
		{name: "replica safe read", kind: router.Read, entity: "User", want: router.Replica},
		{name: "plain read", kind: router.Read, entity: "Pet", want: router.Primary},
		{name: "no entity", kind: router.Read, want: router.Primary},
	}
	r := router.New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := pet
			switch tt.entity {
			case "User":
				e = user
			case "":
				e = nil
			}
			assert.Equal(t, tt.want, r.Route(tt.kind, e, tt.override, tt.inTx))
		})
	}
}

func TestDriver(t *testing.T) {
	t.Parallel()
	pdb, pmock, err := sqlmock.New()
	require.NoError(t, err)
	rdb, rmock, err := sqlmock.New()
	require.NoError(t, err)
	primary, replica := sql.OpenDB(dialect.SQLite, pdb), sql.OpenDB(dialect.SQLite, rdb)

	alone := router.New(primary)
	assert.Same(t, primary, alone.Driver(router.Replica))
	assert.False(t, alone.ReplicaEnabled())

	r := router.New(primary, router.WithReplica(replica))
	assert.True(t, r.HasReplica())
	assert.Same(t, replica, r.Driver(router.Replica))
	assert.Same(t, primary, r.Driver(router.Primary))
	assert.Same(t, primary, r.Primary())

	user, err := petstore.MustRegistry(nil).Entity("User")
	require.NoError(t, err)
	assert.Same(t, replica, r.Pick(router.Read, user, router.Auto))
	assert.Same(t, primary, r.Pick(router.Write, user, router.Auto))

	r.SetReplicaEnabled(false)
	assert.False(t, r.ReplicaEnabled())
	assert.Same(t, primary, r.Driver(router.Replica))
	r.SetReplicaEnabled(true)
	assert.Same(t, replica, r.Driver(router.Replica))

	pmock.ExpectClose()
	rmock.ExpectClose()
	require.NoError(t, r.Close())
	require.NoError(t, pmock.ExpectationsWereMet())
	require.NoError(t, rmock.ExpectationsWereMet())
}

func TestStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "read", router.Read.String())
	assert.Equal(t, "write", router.Write.String())
	assert.Equal(t, "primary", router.Primary.String())
	assert.Equal(t, "replica", router.Replica.String())
	assert.Equal(t, "auto", router.Auto.String())
}
