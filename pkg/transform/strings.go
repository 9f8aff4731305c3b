package transform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cuemby/sundial/pkg/model"
)

var (
	reLeadingBullet = regexp.MustCompile(`^(●|\*)\s*`)
	reParensPrefix  = regexp.MustCompile(`^\([0-9]+\)\s*`)
	reFPS           = regexp.MustCompile(`FPS:\s+[0-9.]+`)
)

// SimplifyString strips a leading "(N) " prefix from data[key], and when
// key=="title" and data["app"] is present also strips a leading "● "/"* "
// bullet and normalises "FPS: <number>" to "FPS: ...".
func SimplifyString(events []*model.Event, key string) []*model.Event {
	out := make([]*model.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		s, ok := c.Data[key].(string)
		if !ok {
			out[i] = c
			continue
		}
		s = reParensPrefix.ReplaceAllString(s, "")
		if key == "title" {
			if _, hasApp := c.Data["app"]; hasApp {
				s = reFPS.ReplaceAllString(s, "FPS: ...")
				s = reLeadingBullet.ReplaceAllString(s, "")
			}
		}
		c.Data[key] = s
		if key == "title" {
			c.Title = s
		}
		out[i] = c
	}
	return out
}

// SplitURLEvents decomposes each event's data["url"] into $protocol,
// $domain (stripped of a leading "www."), $path, $params, $options (query),
// and $identifier (fragment).
func SplitURLEvents(events []*model.Event) []*model.Event {
	out := make([]*model.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		raw, ok := c.Data["url"].(string)
		if !ok {
			out[i] = c
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			out[i] = c
			continue
		}
		domain := u.Host
		domain = strings.TrimPrefix(domain, "www.")
		c.Data["$protocol"] = u.Scheme
		c.Data["$domain"] = domain
		c.Data["$path"] = u.Path
		c.Data["$params"] = "" // net/url has no distinct "params" component
		c.Data["$options"] = u.RawQuery
		c.Data["$identifier"] = u.Fragment
		out[i] = c
	}
	return out
}
