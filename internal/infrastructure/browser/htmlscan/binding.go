package htmlscan

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"webmcp-agent/internal/domain/entity"
)

// FindBinding reports where a submission of the form declaring tool lands.
// A form without a target (or with _self, _top, _parent) replaces the main
// document; a target naming a frame on the page binds to that frame. _blank and
// unknown names are unbound.
func FindBinding(rawHTML string, tool entity.ToolName) (entity.NavigationBinding, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return entity.NavigationBinding{}, fmt.Errorf("parse html: %w", err)
	}

	binding := entity.NavigationBinding{Tool: tool}

	form := findNode(doc, func(n *html.Node) bool {
		return n.Data == "form" && attr(n, "toolname") == string(tool)
	})
	if form == nil {
		return binding, nil
	}

	target := strings.TrimSpace(attr(form, "target"))
	switch strings.ToLower(target) {
	case "", "_self", "_top", "_parent":
		binding.Bound = true
		return binding, nil
	case "_blank":
		return binding, nil
	}

	frame := findNode(doc, func(n *html.Node) bool {
		return isOneOf(n.Data, "iframe", "frame") && attr(n, "name") == target
	})
	if frame != nil {
		binding.Bound = true
		binding.Target = target
	}
	return binding, nil
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isOneOf(s string, list ...string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}
