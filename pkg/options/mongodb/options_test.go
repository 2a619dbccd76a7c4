package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/retrieval-x/pkg/utils/json"
)

func TestBuildURI(t *testing.T) {
	tests := []struct {
		name string
		opts *Options
		want string
	}{
		{"explicit uri wins", &Options{URI: "mongodb+srv://c.example.net/x", Host: "ignored"}, "mongodb+srv://c.example.net/x"},
		{"host only", &Options{Host: "db", Port: 27017, Database: "retrieval"}, "mongodb://db:27017/retrieval"},
		{"credentials escaped", &Options{Host: "db", Port: 27017, Username: "rag", Password: "p@ss"}, "mongodb://rag:p%40ss@db:27017/"},
		{"query params", &Options{Host: "db", ReplicaSet: "rs0", AuthSource: "users", Direct: true},
			"mongodb://db/?authSource=users&directConnection=true&replicaSet=rs0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildURI(tt.opts))
		})
	}
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	assert.NoError(t, o.Validate())

	o.MinPoolSize = o.MaxPoolSize + 1
	assert.Error(t, o.Validate())

	o = NewOptions()
	o.Database = ""
	assert.Error(t, o.Validate())
}

func TestPasswordRedacted(t *testing.T) {
	o := NewOptions()
	o.Password = "hunter2"
	data, err := json.Marshal(o)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, o.String(), "hunter2")
}
