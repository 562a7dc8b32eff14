package directory

import "github.com/okian/matchmaker/internal/domain/model"

// Persister writes the full roster after an availability change.
type Persister interface {
	Save(employees []model.Employee) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(employees []model.Employee) error

// Save calls f.
func (f PersisterFunc) Save(employees []model.Employee) error { return f(employees) }

// Option applies a configuration option to the Directory.
type Option func(*Directory)

// WithPersister enables write-back after every availability mutation.
func WithPersister(p Persister) Option {
	return func(d *Directory) {
		d.persister = p
	}
}
