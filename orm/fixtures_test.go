package orm_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/orm"
)

type member struct {
	ID     int64
	Name   string
	Tags   []string
	Scores []int64
	Prefs  map[string]string
	Logins []string
	Notes  []string
}

var (
	memberTags   = &collection.Role{Name: "member.Tags", Owner: "member", Shape: collection.Set, KeyColumns: []string{"member_id"}}
	memberScores = &collection.Role{Name: "member.Scores", Owner: "member", Shape: collection.List, KeyColumns: []string{"member_id"}}
	memberPrefs  = &collection.Role{Name: "member.Prefs", Owner: "member", Shape: collection.Map, KeyColumns: []string{"member_id"}}
	memberLogins = &collection.Role{Name: "member.Logins", Owner: "member", Shape: collection.Bag, IDColumn: "id", KeyColumns: []string{"member_id"}}
	memberNotes  = &collection.Role{Name: "member.Notes", Owner: "member", Shape: collection.Bag, KeyColumns: []string{"member_id"}}
)

var (
	tagsTable   = orm.CollectionTable{Table: "member_tags", Key: "member_id", Element: "tag", OrderBy: "tag"}
	scoresTable = orm.CollectionTable{Table: "member_scores", Key: "member_id", Index: "idx", Element: "score"}
	prefsTable  = orm.CollectionTable{Table: "member_prefs", Key: "member_id", Index: "pref_key", Element: "pref_value"}
	loginsTable = orm.CollectionTable{Table: "member_logins", Key: "member_id", ID: "id", Element: "host", OrderBy: "id"}
	notesTable  = orm.CollectionTable{Table: "member_notes", Key: "member_id", Element: "body"}
)

func mapMember(row collection.Row) (member, error) {
	var (
		m   member
		err error
	)
	if m.ID, err = orm.Value[int64](row, 0); err != nil {
		return m, err
	}
	if m.Name, err = orm.Value[string](row, 1); err != nil {
		return m, err
	}
	return m, nil
}

func memberKey(m member) any { return m.ID }

func members(db orm.Querier) *orm.Query[member] {
	q := orm.NewQuery[member](db, "members", []string{"id", "name"}, "id", mapMember).
		Owner("member", memberKey)
	q.RegisterCollection("Tags", orm.CollectionFetch[member]{
		Role:  memberTags,
		Table: tagsTable,
		Assign: orm.AssignElements[member, string](memberTags, memberKey, func(m *member, v []string) {
			m.Tags = v
		}),
	})
	q.RegisterCollection("Scores", orm.CollectionFetch[member]{
		Role:  memberScores,
		Table: scoresTable,
		Assign: orm.AssignElements[member, int64](memberScores, memberKey, func(m *member, v []int64) {
			m.Scores = v
		}),
	})
	q.RegisterCollection("Prefs", orm.CollectionFetch[member]{
		Role:  memberPrefs,
		Table: prefsTable,
		Assign: orm.AssignEntries[member, string, string](memberPrefs, memberKey, func(m *member, v map[string]string) {
			m.Prefs = v
		}),
	})
	q.RegisterCollection("Logins", orm.CollectionFetch[member]{
		Role:  memberLogins,
		Table: loginsTable,
		Assign: orm.AssignElements[member, string](memberLogins, memberKey, func(m *member, v []string) {
			m.Logins = v
		}),
	})
	q.RegisterCollection("Notes", orm.CollectionFetch[member]{
		Role:  memberNotes,
		Table: notesTable,
		Assign: orm.AssignElements[member, string](memberNotes, memberKey, func(m *member, v []string) {
			m.Notes = v
		}),
	})
	return q
}

// queryLogger records every logged message.
type queryLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *queryLogger) Log(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

// selects returns the number of SELECT statements logged.
func (l *queryLogger) selects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.msgs {
		if strings.HasPrefix(m, "SELECT") {
			n++
		}
	}
	return n
}

var schema = []string{
	"DROP TABLE IF EXISTS member_notes",
	"DROP TABLE IF EXISTS member_logins",
	"DROP TABLE IF EXISTS member_prefs",
	"DROP TABLE IF EXISTS member_scores",
	"DROP TABLE IF EXISTS member_tags",
	"DROP TABLE IF EXISTS members",
	"CREATE TABLE members (id INTEGER PRIMARY KEY, name VARCHAR(64) NOT NULL)",
	"CREATE TABLE member_tags (member_id INTEGER NOT NULL, tag VARCHAR(64) NOT NULL)",
	"CREATE TABLE member_scores (member_id INTEGER NOT NULL, idx INTEGER NOT NULL, score INTEGER NOT NULL)",
	"CREATE TABLE member_prefs (member_id INTEGER NOT NULL, pref_key VARCHAR(64) NOT NULL, pref_value VARCHAR(64) NOT NULL)",
	"CREATE TABLE member_logins (id INTEGER PRIMARY KEY, member_id INTEGER NOT NULL, host VARCHAR(64) NOT NULL)",
	"CREATE TABLE member_notes (member_id INTEGER NOT NULL, body VARCHAR(64) NOT NULL)",
}

var seedRows = []string{
	"INSERT INTO members (id, name) VALUES (1, 'alice'), (2, 'bob'), (3, 'carol')",
	"INSERT INTO member_tags (member_id, tag) VALUES (1, 'go'), (1, 'sql'), (3, 'db')",
	"INSERT INTO member_scores (member_id, idx, score) VALUES (1, 0, 10), (1, 1, 20), (1, 2, 30), (2, 0, 5)",
	"INSERT INTO member_prefs (member_id, pref_key, pref_value) VALUES (1, 'theme', 'dark'), (1, 'lang', 'en')",
	"INSERT INTO member_logins (id, member_id, host) VALUES (1, 1, 'home'), (2, 1, 'work'), (3, 1, 'home'), (4, 2, 'cafe')",
	"INSERT INTO member_notes (member_id, body) VALUES (2, 'hello')",
}

func seed(t *testing.T, db *orm.DB) {
	t.Helper()

	for _, stmt := range append(append([]string(nil), schema...), seedRows...) {
		if _, err := db.ExecContext(t.Context(), stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
}

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

// checkStrategies runs every fetch strategy against a seeded database.
func checkStrategies(t *testing.T, db *orm.DB) {
	t.Helper()

	t.Run("join fetch list", func(t *testing.T) {
		got, err := members(db).JoinFetch("Scores").All(t.Context())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		want := []member{
			{ID: 1, Name: "alice", Scores: []int64{10, 20, 30}},
			{ID: 2, Name: "bob", Scores: []int64{5}},
			{ID: 3, Name: "carol", Scores: []int64{}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("join fetch set and list", func(t *testing.T) {
		got, err := members(db).JoinFetch("Tags").JoinFetch("Scores").All(t.Context())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		want := []member{
			{ID: 1, Name: "alice", Tags: []string{"go", "sql"}, Scores: []int64{10, 20, 30}},
			{ID: 2, Name: "bob", Tags: []string{}, Scores: []int64{5}},
			{ID: 3, Name: "carol", Tags: []string{"db"}, Scores: []int64{}},
		}
		if diff := cmp.Diff(want, got, sortStrings); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("preload map", func(t *testing.T) {
		got, err := members(db).Preload("Prefs").All(t.Context())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		want := []member{
			{ID: 1, Name: "alice", Prefs: map[string]string{"theme": "dark", "lang": "en"}},
			{ID: 2, Name: "bob", Prefs: map[string]string{}},
			{ID: 3, Name: "carol", Prefs: map[string]string{}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("preload bag keeps duplicates", func(t *testing.T) {
		got, err := members(db).Where("id < ?", 3).Preload("Logins").All(t.Context())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		want := []member{
			{ID: 1, Name: "alice", Logins: []string{"home", "work", "home"}},
			{ID: 2, Name: "bob", Logins: []string{"cafe"}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("join fetch pages owners", func(t *testing.T) {
		got, err := members(db).JoinFetch("Scores").Limit(1).Offset(1).All(t.Context())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		want := []member{{ID: 2, Name: "bob", Scores: []int64{5}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("join fetch bag keeps each row once", func(t *testing.T) {
		got, err := members(db).Where("members.id = ?", 1).JoinFetch("Logins").Preload("Tags").All(t.Context())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		want := []member{{ID: 1, Name: "alice", Tags: []string{"go", "sql"}, Logins: []string{"home", "work", "home"}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("join fetch bag with another join", func(t *testing.T) {
		_, err := members(db).JoinFetch("Logins").JoinFetch("Tags").All(t.Context())
		if !errors.Is(err, orm.ErrBagJoinFetch) {
			t.Errorf("All error = %v, want %v", err, orm.ErrBagJoinFetch)
		}
	})

	t.Run("join fetch pages before preloading", func(t *testing.T) {
		got, s, err := members(db).JoinFetch("Scores").Preload("Tags").Limit(1).Offset(2).Session(t.Context())
		if err != nil {
			t.Fatalf("Session: %v", err)
		}
		want := []member{{ID: 3, Name: "carol", Tags: []string{"db"}, Scores: []int64{}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
		for _, owner := range []int64{1, 2} {
			k, err := collection.NewKey(memberTags, owner)
			if err != nil {
				t.Fatalf("NewKey: %v", err)
			}
			if c, ok := s.FindExisting(k); ok {
				t.Errorf("tags of paged-out member %d loaded: %v", owner, c)
			}
		}
	})

	t.Run("lazy then pending", func(t *testing.T) {
		got, s, err := members(db).Lazy("Tags").Session(t.Context())
		if err != nil {
			t.Fatalf("Session: %v", err)
		}
		for _, m := range got {
			if m.Tags != nil {
				t.Errorf("member %d: lazy Tags = %v, want nil", m.ID, m.Tags)
			}
		}

		b, err := orm.Pending(t.Context(), db, s, memberTags, tagsTable, true)
		if err != nil {
			t.Fatalf("Pending: %v", err)
		}
		if len(b.Owners()) != 3 {
			t.Fatalf("pending owners = %v, want 3", b.Owners())
		}
		c, ok := b.Get(int64(1))
		if !ok || c.State() != collection.Initialized {
			t.Fatalf("alice tags not initialized: %v", c)
		}
		tags, err := orm.Elements[string](s, memberTags, 1)
		if err != nil {
			t.Fatalf("Elements: %v", err)
		}
		if diff := cmp.Diff([]string{"go", "sql"}, tags, sortStrings); diff != "" {
			t.Errorf("tags mismatch (-want +got):\n%s", diff)
		}
		if c, _ := b.Get(int64(2)); c == nil || c.Len() != 0 {
			t.Errorf("bob tags = %v, want initialized empty", c)
		}
	})

	t.Run("session reuse skips loaded collections", func(t *testing.T) {
		logger := &queryLogger{}
		dbg := db.Debug(logger)
		s := dbg.Session()

		if _, err := members(dbg).WithSession(s).JoinFetch("Scores").All(t.Context()); err != nil {
			t.Fatalf("first All: %v", err)
		}
		got, err := members(dbg).WithSession(s).Preload("Scores").All(t.Context())
		if err != nil {
			t.Fatalf("second All: %v", err)
		}
		if n := logger.selects(); n != 2 {
			t.Errorf("issued %d SELECTs, want 2", n)
		}
		if diff := cmp.Diff([]int64{10, 20, 30}, got[0].Scores); diff != "" {
			t.Errorf("scores mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("owners are wired", func(t *testing.T) {
		_, s, err := members(db).JoinFetch("Scores").Session(t.Context())
		if err != nil {
			t.Fatalf("Session: %v", err)
		}
		k, err := collection.NewKey(memberScores, 1)
		if err != nil {
			t.Fatalf("NewKey: %v", err)
		}
		c, ok := s.FindExisting(k)
		if !ok {
			t.Fatal("alice scores not cached")
		}
		owner, ok := c.Owner()
		if !ok {
			t.Fatal("alice scores have no owner")
		}
		if m, ok := owner.(*member); !ok || m.Name != "alice" {
			t.Errorf("owner = %#v, want alice", owner)
		}
	})
}
