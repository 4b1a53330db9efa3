// internal/extract/supplied.go
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/steltix/newsgrab/pkg/types"
)

// suppliedStrategy handles caller-provided HTML: full parse, zero network.
// When a request arrives with a document already attached there is nothing
// a refetch or a browser render could add.
type suppliedStrategy struct{}

// NewSuppliedStrategy builds the no-network strategy for pre-supplied HTML.
func NewSuppliedStrategy() Strategy {
	return suppliedStrategy{}
}

func (suppliedStrategy) Name() string { return types.MethodSupplied }

func (suppliedStrategy) Extract(ctx context.Context, target *Target) (*Attempt, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(target.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse supplied document: %w", err)
	}

	attempt := &Attempt{HTML: target.HTML}
	attempt.Fields = mergeParsed(doc, target.HTML, target.URL)
	return attempt, nil
}
