package people

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nalgeon/be"
)

func TestUpsertNormalizesAndResolves(t *testing.T) {
	ctx := context.Background()
	book := newTestBook(newMemStore())

	p, err := book.Upsert(ctx, "u1", PersonInput{
		Name:  "  Foo Bar ",
		Email: " Foo@Bar.com",
		Phone: "555-1234",
	})
	be.Err(t, err, nil)
	be.Equal(t, p.Key, "email:foo@bar.com")
	be.Equal(t, p.Name, "Foo Bar")
	be.Equal(t, p.Phone, "5551234")
}

func TestUpsertExplicitKeyWins(t *testing.T) {
	book := newTestBook(newMemStore())
	p, err := book.Upsert(context.Background(), "u1", PersonInput{Key: " abc ", Name: "X", Email: "x@y.com"})
	be.Err(t, err, nil)
	be.Equal(t, p.Key, "abc")
}

func TestUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := fixedNow
	book := New(store, WithClock(func() time.Time { return now }))

	first, err := book.Upsert(ctx, "u1", PersonInput{Name: "Ana", Email: "ana@example.com"})
	be.Err(t, err, nil)

	now = now.Add(time.Hour)
	second, err := book.Upsert(ctx, "u1", PersonInput{Name: "Ana B", Email: "ANA@example.com"})
	be.Err(t, err, nil)
	be.Equal(t, second.Key, first.Key)
	be.Equal(t, second.CreatedAt, fixedNow)
	be.Equal(t, second.UpdatedAt, fixedNow.Add(time.Hour))
	be.Equal(t, second.Name, "Ana B")
}

func TestUpsertValidation(t *testing.T) {
	ctx := context.Background()
	book := newTestBook(newMemStore())

	_, err := book.Upsert(ctx, "u1", PersonInput{Name: "  ", Email: "a@b.c"})
	be.Err(t, err, ErrInvalidInput)

	_, err = book.Upsert(ctx, "u1", PersonInput{Name: "A", Relationship: "Nemesis"})
	be.Err(t, err, ErrInvalidInput)

	_, err = book.Upsert(ctx, "u1", PersonInput{Name: "A", Notes: strings.Repeat("n", MaxNotesLength+1)})
	be.Err(t, err, ErrInvalidInput)

	_, err = book.Upsert(ctx, "", PersonInput{Name: "A"})
	be.Err(t, err, ErrInvalidInput)
}

func TestUpsertPersistenceFailure(t *testing.T) {
	store := newMemStore()
	boom := errors.New("write refused")
	store.fail["email:a@b.c"] = boom
	book := newTestBook(store)

	_, err := book.Upsert(context.Background(), "u1", PersonInput{Name: "A", Email: "a@b.c"})
	be.Err(t, err, ErrPersistence)
	be.Err(t, err, boom)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	book := newTestBook(newMemStore())
	p, err := book.Upsert(ctx, "u1", PersonInput{Name: "Karen Ram", Phone: "732-801-7003"})
	be.Err(t, err, nil)

	nick := " KR "
	rel := RelationshipColleague
	notes := "Met at Acme"
	updated, err := book.Update(ctx, "u1", p.Key, PersonPatch{Nickname: &nick, Relationship: &rel, Notes: &notes})
	be.Err(t, err, nil)
	be.Equal(t, updated.DisplayName(), "KR")
	be.Equal(t, updated.Relationship, RelationshipColleague)
	be.Equal(t, updated.Notes, notes)
	be.Equal(t, updated.Phone, "7328017003")

	bad := Relationship("Rival")
	_, err = book.Update(ctx, "u1", p.Key, PersonPatch{Relationship: &bad})
	be.Err(t, err, ErrInvalidInput)

	long := strings.Repeat("é", MaxNotesLength+1)
	_, err = book.Update(ctx, "u1", p.Key, PersonPatch{Notes: &long})
	be.Err(t, err, ErrInvalidInput)

	_, err = book.Update(ctx, "u1", "phone:000", PersonPatch{Notes: &notes})
	be.Err(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	book := newTestBook(newMemStore())
	p, err := book.Upsert(ctx, "u1", PersonInput{Name: "Ana"})
	be.Err(t, err, nil)

	be.Err(t, book.Delete(ctx, "u1", p.Key), nil)
	be.Err(t, book.Delete(ctx, "u1", p.Key), ErrNotFound)

	list, err := book.List(ctx, "u1")
	be.Err(t, err, nil)
	be.Equal(t, len(list), 0)
}

func TestParseRelationship(t *testing.T) {
	r, err := ParseRelationship(" close friend")
	be.Err(t, err, nil)
	be.Equal(t, r, RelationshipCloseFriend)

	_, err = ParseRelationship("boss")
	be.Err(t, err, ErrInvalidInput)
}

func TestErrorFormat(t *testing.T) {
	err := &Error{Code: ErrorCodePersistence, Message: "writing \"k\"", Err: errors.New("locked")}
	be.Equal(t, err.Error(), `people: persistence: writing "k": locked`)
	be.Equal(t, (&Error{Code: ErrorCodeNotFound}).Error(), "people: not_found")
}

func TestValidatorTags(t *testing.T) {
	v := newValidator()
	be.Err(t, v.Struct(PersonInput{Name: "Ana", Relationship: RelationshipFamily}), nil)
	be.True(t, v.Struct(PersonInput{Name: "Ana", Relationship: "Acquaintance"}) != nil)

	defer func() {
		be.True(t, recover() != nil)
	}()
	mustRegister(v, "", func(validator.FieldLevel) bool { return true })
}
