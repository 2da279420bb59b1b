// Package script models the page-lifetime set of provider scripts and the
// globals they install.
//
// A Document is the Go analog of a browser document head: script elements
// keyed by a stable identifier, plus a table of named objects that executing
// a script makes available (for example "google.accounts.id").
package script

import (
	"sort"
	"sync"
)

// Installer runs a fetched script body against the document, typically by
// calling SetGlobal with the SDK object the script provides.
type Installer func(body []byte, doc *Document) error

// Element is a snapshot of one script element.
type Element struct {
	ID     string
	Src    string
	Loaded bool
	Err    error
}

// Document holds script elements and installed globals.
// Elements are never removed; they live as long as the Document.
type Document struct {
	mu         sync.RWMutex
	elements   map[string]*Element
	globals    map[string]any
	installers map[string]Installer
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{
		elements:   make(map[string]*Element),
		globals:    make(map[string]any),
		installers: make(map[string]Installer),
	}
}

// RegisterInstaller sets the installer executed when the script with id loads.
func (d *Document) RegisterInstaller(id string, install Installer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.installers[id] = install
}

// Global returns the object installed under name.
func (d *Document) Global(name string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.globals[name]
	return v, ok
}

// SetGlobal installs v under name, replacing any previous value.
func (d *Document) SetGlobal(name string, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.globals[name] = v
}

// Element returns a snapshot of the element with id.
func (d *Document) Element(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elements[id]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

// Elements returns snapshots of all elements ordered by id.
func (d *Document) Elements() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Element, 0, len(d.elements))
	for _, el := range d.elements {
		out = append(out, *el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// settled reports whether the element with id has finished loading,
// and the recorded load error if it failed.
func (d *Document) settled(id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elements[id]
	if !ok {
		return false, nil
	}
	if el.Err != nil {
		return true, el.Err
	}
	return el.Loaded, nil
}

// insert adds a pending element for id unless one exists, returning the
// source URL of the element that is now in the document.
func (d *Document) insert(id, src string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[id]; ok {
		return el.Src
	}
	d.elements[id] = &Element{ID: id, Src: src}
	return src
}

func (d *Document) finish(id string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := d.elements[id]
	if err != nil {
		el.Err = err
		return
	}
	el.Loaded = true
}

func (d *Document) installer(id string) (Installer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	install, ok := d.installers[id]
	return install, ok
}
