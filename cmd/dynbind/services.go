package main

import (
	"fmt"
)

type ServicesCmd struct {
	ProtoFlags `embed:""`
}

func (c *ServicesCmd) Run(env *Env) error {
	reg, err := c.registry(env.Config)
	if err != nil {
		return err
	}
	for _, sd := range reg.Services() {
		fmt.Println(env.Style.Bold(sd.GetFullyQualifiedName()))
		for _, md := range sd.GetMethods() {
			line := fmt.Sprintf("  %s(%s) %s", md.GetName(),
				md.GetInputType().GetFullyQualifiedName(), md.GetOutputType().GetFullyQualifiedName())
			if md.IsClientStreaming() || md.IsServerStreaming() {
				line += env.Style.Dim(" [streaming, not callable]")
			}
			fmt.Println(line)
		}
	}
	return nil
}
