package testdata

type Broken struct {
	ID    int      `db:"id,primaryKey"`
	Items []string `coll:"queue"`
}
