// Package storetest provides a sql.DB whose transactions are no-ops, for
// service tests that drive fake repositories through real Begin/Commit calls.
package storetest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
)

// NewDB returns a sql.DB that can begin and commit transactions but cannot
// execute statements. Tests pair it with in-memory repository fakes.
func NewDB() *sql.DB {
	return sql.OpenDB(connector{})
}

type connector struct{}

func (connector) Connect(context.Context) (driver.Conn, error) { return conn{}, nil }
func (connector) Driver() driver.Driver                        { return drv{} }

type drv struct{}

func (drv) Open(string) (driver.Conn, error) { return conn{}, nil }

type conn struct{}

func (conn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("storetest: no statements") }
func (conn) Close() error                        { return nil }
func (conn) Begin() (driver.Tx, error)           { return tx{}, nil }

type tx struct{}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }
