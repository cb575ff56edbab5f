package testdata

type Event struct {
	Name    string   `db:"name"`
	Payload string   `db:"payload"`
	Tags    []string `coll:"set"`
}
