package provisioner

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// Provisioning failures are split by cause so operators can tell a bad admin
// credential from an unreachable server or a naming conflict.
var (
	ErrInvalidSlug  = errors.New("provisioner: slug fails identifier allow-list")
	ErrCredential   = errors.New("provisioner: admin credential rejected")
	ErrConnectivity = errors.New("provisioner: database server unreachable")
	ErrNameConflict = errors.New("provisioner: database exists with a different owner")
)

// MySQL server error numbers relevant to provisioning.
const (
	mysqlErrDBCreateExists = 1007
	mysqlErrDBAccessDenied = 1044
	mysqlErrAccessDenied   = 1045
	mysqlErrTableAccess    = 1142
	mysqlErrPrivCheck      = 1227
	mysqlErrPasswordExpire = 1862
)

// classify maps a raw MySQL error to the provisioning taxonomy. Anything that
// is not a recognized server error is treated as connectivity.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrAccessDenied, mysqlErrPasswordExpire:
			return errors.Join(ErrCredential, err)
		case mysqlErrDBAccessDenied, mysqlErrTableAccess, mysqlErrPrivCheck:
			// Access denied on an existing database means someone else owns
			// it under our derived name.
			return errors.Join(ErrNameConflict, err)
		}
		return errors.Join(ErrConnectivity, err)
	}

	return errors.Join(ErrConnectivity, err)
}

// databaseExists reports MySQL error 1007, a raw CREATE DATABASE losing a
// race against another provisioner. With IF NOT EXISTS it never fires, and
// when it does the database is there, which is all the caller wanted.
func databaseExists(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDBCreateExists
}
