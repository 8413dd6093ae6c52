// Command recordset inspects and queries the entities of a recordset
// configuration file.
//
// Usage:
//
//	recordset -c recordset.yaml inspect [entity]
//	recordset -c recordset.yaml find UserModel 1 --with posts
//	recordset -c recordset.yaml count PostModel --where status=published
package main

import (
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
