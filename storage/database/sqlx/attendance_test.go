package sqlxrepos

import (
	"testing"

	"github.com/trezcool/tutorcenter/tests"
)

func TestRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	testutil.RunRepositorySuite(t, NewRepository(db))
}
