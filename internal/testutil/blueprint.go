package testutil

import (
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/composer"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dsl"
)

// OrgModels is the model graph shared by query, executor and server tests.
const OrgModels = `
models:
  Org:
    fields:
      name: {type: string, validate: [{minLength: 2}]}
      slug: {type: string, unique: true}
      description: {type: string, nullable: true}
    relations:
      repos: {from: Repo, through: org}
    queries:
      public_repos:
        from: repos
        as: r
        filter: "r.is_public == true"
        orderBy: [name]
      top_repos:
        from: repos
        orderBy: [stars desc]
        limit: 2
      repo_count:
        from: repos
        count: true
      total_stars:
        from: repos
        sum: stars
    computed:
      name_upper: "upper(name)"
  Repo:
    fields:
      name: string
      is_public: {type: boolean, default: false}
      stars: {type: integer, default: 0}
    references:
      org: Org
    relations:
      issues: {from: Issue, through: repo}
    computed:
      full_name: "org.slug + '/' + name"
  Issue:
    fields:
      title: string
      open: {type: boolean, default: true}
    references:
      repo: {to: Repo, onDelete: cascade}
`

// OrgBlueprint adds a REST API over OrgModels: orgs identified by slug with
// nested repos.
const OrgBlueprint = OrgModels + `
entrypoints:
  - target: Org
    identify: slug
    endpoints:
      - list: {pageable: true, orderBy: [name]}
      - get:
          response: [name, slug, repo_count, total_stars, name_upper, {repos: [name, stars]}]
      - create
      - update
      - delete
    entrypoints:
      - target: repos
        as: repo
        response: [id, name, is_public, stars, full_name, {issues: [title, open]}]
        endpoints:
          - list: {orderBy: [stars desc]}
          - get
          - create
          - update
          - delete
          - custom:
              method: POST
              path: star
              cardinality: one
              actions:
                - update:
                    set: {stars: "repo.stars + 1"}
`

// Compose parses and composes a blueprint, failing the test on any error.
func Compose(t testing.TB, src string) *definition.Definition {
	t.Helper()

	def, err := ComposeErr(t, src)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	return def
}

// ComposeErr parses src and returns the composition result. Parse errors
// fail the test.
func ComposeErr(t testing.TB, src string) (*definition.Definition, error) {
	t.Helper()

	doc, err := dsl.ParseBlueprint([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("ParseBlueprint() error: %v", err)
	}
	return composer.Compose(doc)
}
