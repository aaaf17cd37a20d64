package dynamap_test

import (
	"time"

	dynamap "github.com/reoring/dynamap"
)

// Test schemas shared across the package tests.

type Address struct {
	Street string `dyn:"street,required"`
	City   string `dyn:"city"`
}

type User struct {
	Name    string                   `dyn:"name,required"`
	Age     *int64                   `dyn:"age"`
	Address dynamap.Instance[Address] `dyn:"address"`
	Tags    []string                 `dyn:"tags"`
	Roles   map[string]struct{}      `dyn:"roles"`
	Attrs   map[string]string        `dyn:"attrs"`
	Joined  time.Time                `dyn:"joined"`
	Source  string                   `dyn:"source,meta"`
}

type Greeter struct {
	Name string `dyn:"name"`
}

func (Greeter) DefaultMethods() map[string]dynamap.DefaultFunc[Greeter] {
	return map[string]dynamap.DefaultFunc[Greeter]{
		"Greeting": func(in dynamap.Instance[Greeter]) (any, error) {
			name, err := dynamap.Get[string](in, "name")
			if err != nil {
				return nil, err
			}
			return "hello " + name, nil
		},
	}
}
