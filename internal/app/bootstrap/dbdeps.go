// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the synchronized store and, with the mongo backend, the
// client and database behind it.
type DBDeps struct {
	Store   syncstore.Store
	Backend string

	MongoClient   *mongo.Client   // nil with the memory backend
	MongoDatabase *mongo.Database // nil with the memory backend
}
