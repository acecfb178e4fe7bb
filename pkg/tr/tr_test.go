package tr

import (
	"context"
	"testing"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/stretchr/testify/assert"
)

func TestTxFromCtxMissing(t *testing.T) {
	tx, err := TxFromCtx(context.Background())

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, e.ErrTransactionNotFound)
}
