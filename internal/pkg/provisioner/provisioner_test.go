package provisioner

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestDatabaseName_Deterministic(t *testing.T) {
	first, err := DatabaseName("acme-corp")
	assert.NoError(t, err)

	second, err := DatabaseName("acme-corp")
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "biz_acme-corp", first)
}

func TestDatabaseName_RejectsInvalidSlug(t *testing.T) {
	for _, slug := range []string{"", "Acme", "acme corp", "acme;drop table", "a"} {
		_, err := DatabaseName(slug)
		assert.ErrorIs(t, err, ErrInvalidSlug, "slug %q", slug)
	}
}

func TestClassify_Credential(t *testing.T) {
	for _, num := range []uint16{1045, 1862} {
		err := classify(&mysql.MySQLError{Number: num, Message: "denied"})
		assert.ErrorIs(t, err, ErrCredential, "error number %d", num)
	}
}

func TestClassify_NameConflict(t *testing.T) {
	for _, num := range []uint16{1044, 1142, 1227} {
		err := classify(&mysql.MySQLError{Number: num, Message: "denied"})
		assert.ErrorIs(t, err, ErrNameConflict, "error number %d", num)
	}
}

// classify never returns nil for a non-nil input; the create-race case is
// filtered out by the caller before classification, so wrapping the result
// with %w always yields a well-formed error.
func TestClassify_NonNilInputNeverMapsToNil(t *testing.T) {
	err := classify(&mysql.MySQLError{Number: 1007, Message: "database exists"})
	assert.Error(t, err)
}

func TestDatabaseExists(t *testing.T) {
	assert.True(t, databaseExists(&mysql.MySQLError{Number: 1007, Message: "database exists"}))
	assert.False(t, databaseExists(&mysql.MySQLError{Number: 1045, Message: "denied"}))
	assert.False(t, databaseExists(errors.New("dial tcp: connection refused")))
	assert.False(t, databaseExists(nil))
}

func TestClassify_UnknownIsConnectivity(t *testing.T) {
	err := classify(&mysql.MySQLError{Number: 2002, Message: "can't connect"})
	assert.ErrorIs(t, err, ErrConnectivity)

	err = classify(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassify_PreservesCause(t *testing.T) {
	cause := &mysql.MySQLError{Number: 1045, Message: "denied"}
	err := classify(cause)

	var myErr *mysql.MySQLError
	assert.True(t, errors.As(err, &myErr))
	assert.Equal(t, cause.Number, myErr.Number)
}
