package repo

import (
	"context"

	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/example/model"
	"github.com/mickamy/ormcoll/example/query"
	"github.com/mickamy/ormcoll/orm"
	"github.com/mickamy/ormcoll/scope"
)

// UserRepository wraps generated query functions with a repository pattern.
// Queries share one collection session, so a collection loaded once is not
// read again.
type UserRepository struct {
	db      orm.Querier
	session *collection.Session
}

func NewUserRepository(db *orm.DB) *UserRepository {
	return &UserRepository{db: db, session: db.Session()}
}

// FindByID loads a user with roles and settings joined into one statement.
func (r *UserRepository) FindByID(ctx context.Context, id int) (model.User, error) {
	return query.Users(r.db).WithSession(r.session).
		Where("users.id = ?", id).
		JoinFetch("Roles").
		JoinFetch("Settings").
		First(ctx)
}

// FindAll loads users and their roles with one follow-up statement.
func (r *UserRepository) FindAll(ctx context.Context, scopes ...scope.Scope) ([]model.User, error) {
	return query.Users(r.db).WithSession(r.session).
		Scopes(scopes...).
		OrderBy("users.id").
		Preload("Roles").
		All(ctx)
}

// PostsOf loads a user's posts, deferring pages until LoadPages.
func (r *UserRepository) PostsOf(ctx context.Context, userID int) ([]model.Post, error) {
	return query.Posts(r.db).WithSession(r.session).
		Where("user_id = ?", userID).
		Preload("Labels").
		Lazy("Pages").
		All(ctx)
}

// LoadPages initializes every lazily fetched post page list.
func (r *UserRepository) LoadPages(ctx context.Context) (*orm.Batch, error) {
	return orm.Pending(ctx, r.db, r.session, query.PostPagesRole, query.PostPagesTable, true)
}
