// Package database implements postgres connection handling and the
// per-entity stores.
package database

import (
	"github.com/go-pg/pg"
	"github.com/spf13/viper"
)

// DBConn returns a postgres connection pool configured from viper.
func DBConn() (*pg.DB, error) {
	db := pg.Connect(&pg.Options{
		Addr:     viper.GetString("db_addr"),
		User:     viper.GetString("db_user"),
		Password: viper.GetString("db_password"),
		Database: viper.GetString("db_database"),
	})

	if err := checkConn(db); err != nil {
		return nil, err
	}
	return db, nil
}

func checkConn(db *pg.DB) error {
	var n int
	_, err := db.QueryOne(pg.Scan(&n), "SELECT 1")
	return err
}
