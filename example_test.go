package recordquery_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/dir01/recordquery"
	_ "github.com/mattn/go-sqlite3"
)

// ExampleArticle is the record shape used by the example.
type ExampleArticle struct {
	ID    string `recordquery:"id" json:"id"`
	Title string `json:"title"`
	Tag   string `json:"tag"`
	Views int    `json:"views"`
	Draft bool   `json:"draft"`
}

// This example builds a filter expression for the remote record store's list
// API, then mirrors a few records locally and answers the equivalent
// question against the mirror.
func Example() {
	ctx := context.Background()

	// Build the filter string to send to the remote API. Optional search
	// parameters can be wired in directly: absent values simply contribute
	// nothing, and Build repairs whatever connectives they leave behind.
	searchTerm := "go"
	authorFilter := "" // not provided by the caller

	b := recordquery.New[string]()
	filter := b.
		OpenBracket().
		Like("title", searchTerm).
		Or().
		Like("tag", searchTerm).
		CloseBracket().
		And().
		Equal("author", authorFilter).
		And().
		Equal("draft", false).
		Build()
	fmt.Println("filter:", filter)
	fmt.Println("sort:  ", recordquery.Sort(
		recordquery.OrderBy{Field: "views", Direction: recordquery.OrderDesc},
		recordquery.OrderBy{Field: "title"},
	))

	// Mirror some records locally and run the same question as a predicate.
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		log.Printf("failed to open db: %v", err)
		return
	}
	defer db.Close()

	mirror, err := recordquery.NewMirror[ExampleArticle](ctx, db, "articles")
	if err != nil {
		log.Printf("failed to create mirror: %v", err)
		return
	}
	defer mirror.Close()

	articles := []*ExampleArticle{
		{Title: "go generics", Tag: "go", Views: 120},
		{Title: "go iterators", Tag: "go", Views: 80, Draft: true},
		{Title: "sqlite json", Tag: "db", Views: 200},
	}
	for _, a := range articles {
		if err := mirror.Put(ctx, a); err != nil {
			log.Printf("failed to put record: %v", err)
			return
		}
	}

	q := &recordquery.Query{
		Predicate: recordquery.AndPredicates(
			recordquery.OrPredicates(
				recordquery.Cond{Field: "title", Op: recordquery.OpLike, Value: searchTerm},
				recordquery.Cond{Field: "tag", Op: recordquery.OpLike, Value: searchTerm},
			),
			recordquery.Cond{Field: "author", Op: recordquery.OpEq, Value: authorFilter},
			recordquery.Cond{Field: "draft", Op: recordquery.OpEq, Value: false},
		),
		OrderBy: []recordquery.OrderBy{{Field: "views", Direction: recordquery.OrderDesc}},
	}
	seq, err := mirror.Iter(ctx, q)
	if err != nil {
		log.Printf("failed to query mirror: %v", err)
		return
	}
	for a, err := range seq {
		if err != nil {
			log.Printf("iteration failed: %v", err)
			return
		}
		fmt.Printf("local match: %s (%d views)\n", a.Title, a.Views)
	}

	// Output:
	// filter: (title~"go" || tag~"go") && draft=false
	// sort:   -views,title
	// local match: go generics (120 views)
}
