package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatementBody(t *testing.T) {
	cases := map[string]string{
		`"UPDATE t SET x = 1"`:       "UPDATE t SET x = 1;",
		"  SELECT   1   FROM  t ; ":  "SELECT 1 FROM t;",
		`UPDATE t SET y = "hi";`:     "UPDATE t SET y = 'hi';",
		"DELETE FROM t;;":            "DELETE FROM t;",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatementBody(in), "input=%q", in)
	}
}

func TestNormalizeWhen(t *testing.T) {
	assert.Equal(t, "NEW.x > 0", NormalizeWhen("WHEN (NEW.x > 0);"))
	assert.Equal(t, "NEW.x > 0", NormalizeWhen("when NEW.x > 0"))
	assert.Equal(t, "", NormalizeWhen(""))
}

func TestStatementName(t *testing.T) {
	tr, err := NewTrigger(SlotAfterInsert, "a", "b")
	assert.NoError(t, err)
	assert.Equal(t, "trg_users_insert_after_0", StatementName("users", tr, 0))
	assert.Equal(t, "trg_users_insert_after_1", StatementName("users", tr, 1))
}
