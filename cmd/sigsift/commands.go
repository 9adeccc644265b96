package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/loykin/sigsift/pkg/template"
)

const defaultAPIUrl = "http://127.0.0.1:8080/api"

type command struct{}

// connect builds a client for the given flags, falling back to the local
// daemon URL, and checks the daemon answers.
func connect(f NodeFlags) (*APIClient, error) {
	apiUrl := f.APIUrl
	if apiUrl == "" {
		apiUrl = defaultAPIUrl
	}
	c := NewAPIClient(apiUrl, f.APITimeout)
	if !c.IsReachable() {
		return nil, fmt.Errorf("daemon not reachable at %s - start it first with 'sigsift serve'", apiUrl)
	}
	return c, nil
}

func printJSON(raw json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(out.String())
}

func (command) Nodes(f NodeFlags) error {
	c, err := connect(f)
	if err != nil {
		return err
	}
	raw, err := c.ListNodes()
	if err != nil {
		return err
	}
	printJSON(raw)
	return nil
}

func (command) GetConfig(f NodeFlags) error {
	c, err := connect(f)
	if err != nil {
		return err
	}
	raw, err := c.GetConfig(f.Node)
	if err != nil {
		return err
	}
	printJSON(raw)
	return nil
}

func (command) SetConfig(f ConfigSetFlags) error {
	var p template.Payload
	if f.Mode != "" {
		mode := f.Mode
		p.Mode = &mode
	}
	if f.QualitySensitive != "" {
		qs, err := strconv.ParseBool(f.QualitySensitive)
		if err != nil {
			return fmt.Errorf("invalid --quality-sensitive %q: %w", f.QualitySensitive, err)
		}
		p.QualitySensitive = &qs
	}
	if p.Mode == nil && p.QualitySensitive == nil {
		return fmt.Errorf("nothing to set: give --mode and/or --quality-sensitive")
	}
	body, err := template.Encode(p)
	if err != nil {
		return err
	}

	c, err := connect(f.NodeFlags)
	if err != nil {
		return err
	}
	raw, err := c.PutConfig(f.Node, body)
	if err != nil {
		return err
	}
	printJSON(raw)
	return nil
}

func (command) CaptureTemplate(f TemplateFlags) error {
	c, err := connect(f.NodeFlags)
	if err != nil {
		return err
	}
	raw, err := c.CaptureTemplate(f.Node)
	if err != nil {
		return err
	}
	if f.File != "" {
		return os.WriteFile(f.File, raw, 0o644)
	}
	printJSON(raw)
	return nil
}

func (command) ApplyTemplate(f TemplateFlags) error {
	body, err := os.ReadFile(f.File)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	// Validate locally before shipping it to the daemon.
	if _, err := template.Decode(body); err != nil {
		return fmt.Errorf("invalid payload %s: %w", f.File, err)
	}

	c, err := connect(f.NodeFlags)
	if err != nil {
		return err
	}
	raw, err := c.ApplyTemplate(f.Node, body)
	if err != nil {
		return err
	}
	printJSON(raw)
	return nil
}

func (command) Pass(f NodeFlags) error {
	c, err := connect(f)
	if err != nil {
		return err
	}
	if err := c.TriggerPass(); err != nil {
		return err
	}
	fmt.Println("pass complete")
	return nil
}

func (command) Sweep(f NodeFlags) error {
	c, err := connect(f)
	if err != nil {
		return err
	}
	n, err := c.TriggerSweep()
	if err != nil {
		return err
	}
	fmt.Printf("swept %d node(s)\n", n)
	return nil
}
