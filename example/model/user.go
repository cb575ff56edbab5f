package model

import "time"

//go:generate go tool ormcoll -source=$GOFILE -package=query -import=github.com/mickamy/ormcoll/example/model -destination=../query/user_coll_gen.go

type User struct {
	ID        int               `db:"id,primaryKey"`
	Name      string            `db:"name"`
	Email     string            `db:"email"`
	CreatedAt time.Time         `db:"created_at"`
	Roles     []string          `coll:"set,element:role"`
	Settings  map[string]string `coll:"map,index:name,element:value"`
}
