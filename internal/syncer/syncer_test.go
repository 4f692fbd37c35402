package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShard_SplitsEvenly(t *testing.T) {
	codes := []string{"a", "b", "c", "d", "e"}
	shards := Shard(codes, 2)

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, shards)
}

func TestShard_SizeLargerThanInput(t *testing.T) {
	codes := []string{"a", "b"}
	shards := Shard(codes, 10)

	assert.Equal(t, [][]string{{"a", "b"}}, shards)
}

func TestShard_ZeroSizeFallsBackToThreshold(t *testing.T) {
	codes := make([]string, ShardThreshold+1)
	for i := range codes {
		codes[i] = "x"
	}
	shards := Shard(codes, 0)

	assert.Len(t, shards, 2)
	assert.Len(t, shards[0], ShardThreshold)
	assert.Len(t, shards[1], 1)
}

func TestShard_EmptyInput(t *testing.T) {
	assert.Nil(t, Shard(nil, 10))
}

func TestReport_Merge(t *testing.T) {
	r := Report{Fetched: 1, Accepted: 1, Written: 1, Errors: 0}
	r.merge(Report{Fetched: 2, Accepted: 1, Written: 1, Errors: 1})

	assert.Equal(t, Report{Fetched: 3, Accepted: 2, Written: 2, Errors: 1}, r)
}
