package executor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/composer"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/query"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
)

// TokenTTL is how long an access token issued by Login stays valid.
var TokenTTL = 24 * time.Hour

const nowParam = "@now"

// Authenticate binds @auth to the user owning token, read with sel, and
// @requestAuthToken to the token itself. Unknown and expired tokens leave
// the request anonymous with @auth bound to nil.
func (x *Executor) Authenticate(ctx context.Context, db DB, vars *Vars, token string, sel []definition.SelectItem) error {
	vars.Set(composer.AuthVar, nil)
	vars.Set(composer.RequestAuthTokenVar, nil)
	if token == "" {
		return nil
	}
	user, err := x.model(composer.AuthUserModel)
	if err != nil {
		return err
	}

	root := []string{user.Name}
	q := &definition.QueryDef{
		Name:           user.Name,
		ModelRefKey:    user.Name,
		RetType:        user.Name,
		RetCardinality: definition.One,
		FromPath:       root,
		Filter: definition.And(
			definition.Eq(
				&definition.AliasExpr{NamePath: []string{user.Name, "accessTokens", "token"}, Type: definition.TypeString},
				&definition.VariableExpr{Name: composer.RequestAuthTokenVar, Type: definition.TypeString},
			),
			&definition.FunctionExpr{
				Name: definition.FnGt,
				Args: []definition.TypedExpr{
					&definition.AliasExpr{NamePath: []string{user.Name, "accessTokens", "expiryDate"}, Type: definition.TypeString},
					&definition.VariableExpr{Name: nowParam, Type: definition.TypeString},
				},
				Type: definition.TypeBoolean,
			},
		),
		Select: definition.MergeSelects(idSelect(user, root), sel),
	}

	lv := vars.Child()
	lv.Set(composer.RequestAuthTokenVar, token)
	lv.Set(nowParam, timestamp(time.Now()))
	recs, err := x.q.Fetch(ctx, db, q, lv.Lookup)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	vars.Set(composer.AuthVar, recs[0])
	vars.Set(composer.RequestAuthTokenVar, token)
	return nil
}

// Login checks the credentials of a user and issues an access token.
func (x *Executor) Login(ctx context.Context, db DB, username, password string) (string, error) {
	user, err := x.model(composer.AuthUserModel)
	if err != nil {
		return "", err
	}
	root := []string{user.Name}
	q := &definition.QueryDef{
		Name:           user.Name,
		ModelRefKey:    user.Name,
		RetType:        user.Name,
		RetCardinality: definition.One,
		FromPath:       root,
		Filter: definition.Eq(
			&definition.AliasExpr{NamePath: []string{user.Name, "username"}, Type: definition.TypeString},
			&definition.VariableExpr{Name: "username", Type: definition.TypeString},
		),
		Select: append(idSelect(user, root), &definition.ValueSelect{
			Kind:     definition.SelectField,
			Alias:    "password",
			NamePath: []string{user.Name, "password"},
			RefKey:   user.Name + ".password",
			Type:     definition.TypeString,
		}),
	}
	recs, err := x.q.Fetch(ctx, db, q, sqlgen.MapLookup(map[string]any{"username": username}))
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", alerr.New(alerr.ErrUnauthorized, "invalid username or password")
	}
	hash, _ := recs[0]["password"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", alerr.New(alerr.ErrUnauthorized, "invalid username or password")
	}
	id, _ := recs[0].ID()

	tokens, err := x.model(composer.AccessTokenModel)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	values := map[string]any{
		"token":      token,
		"expiryDate": timestamp(time.Now().Add(TokenTTL)),
	}
	if ref := tokens.Reference("authUser"); ref != nil {
		values[tokens.FieldByRefKey(ref.FieldRefKey).Name] = id
	}
	cols, params, err := columns(tokens, values)
	if err != nil {
		return "", err
	}
	if _, err := x.insert(ctx, db, x.b.InsertSQL(tokens, cols), sqlgen.MapLookup(params)); err != nil {
		return "", err
	}
	return token, nil
}

// Logout revokes token. Revoking an unknown token is not an error.
func (x *Executor) Logout(ctx context.Context, db DB, token string) error {
	tokens, err := x.model(composer.AccessTokenModel)
	if err != nil {
		return err
	}
	stmt := x.b.DeleteByColumnSQL(tokens, tokens.DBColumn("token"))
	_, err = x.exec(ctx, db, stmt, sqlgen.MapLookup(map[string]any{sqlgen.ValueParam: token}))
	return err
}

// Register creates a user from {name, username, password}. The password is
// stored as a bcrypt hash.
func (x *Executor) Register(ctx context.Context, db DB, input map[string]any) (query.Record, error) {
	user, err := x.model(composer.AuthUserModel)
	if err != nil {
		return nil, err
	}
	var issues alerr.ValidationErrors
	values := map[string]any{}
	for _, name := range []string{"name", "username", "password"} {
		s, _ := input[name].(string)
		if strings.TrimSpace(s) == "" {
			issues.Add([]string{name}, IssueRequired, "is required")
			continue
		}
		values[name] = s
	}
	if username, ok := values["username"]; ok {
		stmt := x.b.ReferenceLookupSQL(user, user.DBColumn("username"))
		bound, args, err := sqlgen.Bind(x.b.Dialect(), stmt, sqlgen.MapLookup(map[string]any{sqlgen.ValueParam: username}))
		if err != nil {
			return nil, err
		}
		var id int64
		switch err := db.QueryRowContext(ctx, bound, args...).Scan(&id); {
		case err == nil:
			issues.Add([]string{"username"}, "unique", "is already taken")
		case !isNoRows(err):
			return nil, alerr.WrapSQL(err, "look up username", bound)
		}
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(values["password"].(string)), HashCost)
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to hash password")
	}
	values["password"] = string(hash)
	cols, params, err := columns(user, values)
	if err != nil {
		return nil, err
	}
	id, err := x.insert(ctx, db, x.b.InsertSQL(user, cols), sqlgen.MapLookup(params))
	if err != nil {
		return nil, err
	}
	return query.Record{"id": id, "name": values["name"], "username": values["username"]}, nil
}

func idSelect(m *definition.ModelDef, root []string) []definition.SelectItem {
	return []definition.SelectItem{&definition.ValueSelect{
		Kind:     definition.SelectField,
		Alias:    "id",
		NamePath: append(append([]string(nil), root...), "id"),
		RefKey:   m.Name + ".id",
		Type:     definition.TypeInteger,
	}}
}

// timestamp formats t so that timestamps order as text.
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
