package testdata

import "time"

type User struct {
	ID        int64             `db:"id,primaryKey"`
	Name      string            `db:"name"`
	Email     string            `db:"email"`
	Active    bool              `db:"active"`
	CreatedAt time.Time         `db:"created_at"`
	Tags      []string          `coll:"set"`
	Scores    []int             `coll:"list,base:1"`
	Prefs     map[string]string `coll:"map,index:pref_key,element:pref_value"`
	Logins    []time.Time       `coll:"bag,table:login_history,id:id,element:logged_in_at"`
	Slots     [3]string         `coll:"array"`
	internal  string            // unexported, no tag: skipped
}

type Post struct {
	ID     int    `db:"id,primaryKey"`
	UserID int    `db:"user_id"`
	Title  string `db:"title"`
	Body   string `db:"-"`
}
