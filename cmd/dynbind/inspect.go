package main

import (
	"encoding/json"
	"fmt"

	"github.com/funvibe/dynbind/internal/catalog"
)

type InspectCmd struct {
	Patterns []string `arg:"" optional:"" help:"Package patterns (default: ./...)."`
	Dir      string   `help:"Directory to load packages from." default:"." type:"existingdir"`
	JSON     bool     `help:"Print entries as JSON." name:"json"`
}

func (c *InspectCmd) Run(env *Env) error {
	entries, err := catalog.Inspect(c.Dir, c.Patterns...)
	if err != nil {
		return err
	}

	if c.JSON {
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println(env.Style.Dim("no invoke candidates found"))
		return nil
	}
	for _, e := range entries {
		vis := env.Style.Ok(e.Visibility())
		if e.Internal != "" {
			vis = env.Style.Warn(e.Visibility())
		}
		fmt.Printf("%s %s %s\n", e, env.Style.Dim(string(e.Kind)), vis)
	}
	return nil
}
