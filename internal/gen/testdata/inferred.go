package testdata

type Inferred struct {
	ID       int `db:",primaryKey"`
	Name     string // no db tag: column inferred as "name"
	Secret   string `db:"-"` // explicitly skipped
	Labels   []Label `coll:"list"`
	internal string  // unexported: skipped
}

type Label string
