package contextmanager

import (
	"slices"

	"mcp-frete-sistema/internal/contract"
)

// replaceGroups overwrites every group present in src.
func replaceGroups(dst, src *contract.ContextData) *contract.ContextData {
	out := cloneData(dst)
	if src.Conversation != nil {
		out.Conversation = src.Conversation
	}
	if src.User != nil {
		out.User = src.User
	}
	if src.Domain != nil {
		out.Domain = src.Domain
	}
	if src.Workflow != nil {
		out.Workflow = src.Workflow
	}
	if src.Memory != nil {
		out.Memory = src.Memory
	}
	return out
}

// mergeData deep-merges src into dst. Lists of turns grow, lists of names grow without
// duplicates, scalar maps merge key-wise and non-empty scalars overwrite. lastEntities is
// the exception: a new list replaces the old one.
func mergeData(dst, src *contract.ContextData) *contract.ContextData {
	out := cloneData(dst)

	if s := src.Conversation; s != nil {
		c := out.Conversation
		if c == nil {
			c = &contract.ConversationContext{}
		} else {
			cp := *c
			c = &cp
		}
		c.History = append(slices.Clone(c.History), s.History...)
		c.CurrentTopic = overwrite(c.CurrentTopic, s.CurrentTopic)
		c.LastIntent = overwrite(c.LastIntent, s.LastIntent)
		c.LastDomain = overwrite(c.LastDomain, s.LastDomain)
		out.Conversation = c
	}

	if s := src.User; s != nil {
		u := &contract.UserContext{}
		if out.User != nil {
			*u = *out.User
		}
		u.ID = overwrite(u.ID, s.ID)
		u.Role = overwrite(u.Role, s.Role)
		u.Preferences = mergeScalars(u.Preferences, s.Preferences)
		u.RecentQueries = appendUnique(u.RecentQueries, s.RecentQueries)
		out.User = u
	}

	if s := src.Domain; s != nil {
		d := &contract.DomainContext{}
		if out.Domain != nil {
			*d = *out.Domain
		}
		d.Focus = overwrite(d.Focus, s.Focus)
		d.ActiveFilters = mergeScalars(d.ActiveFilters, s.ActiveFilters)
		if s.LastEntities != nil {
			d.LastEntities = s.LastEntities
		}
		out.Domain = d
	}

	if s := src.Workflow; s != nil {
		w := &contract.WorkflowContext{}
		if out.Workflow != nil {
			*w = *out.Workflow
		}
		w.CurrentStep = overwrite(w.CurrentStep, s.CurrentStep)
		w.CompletedSteps = appendUnique(w.CompletedSteps, s.CompletedSteps)
		w.PendingActions = appendUnique(w.PendingActions, s.PendingActions)
		out.Workflow = w
	}

	if s := src.Memory; s != nil {
		m := &contract.MemoryContext{}
		if out.Memory != nil {
			*m = *out.Memory
		}
		m.ShortTerm = mergeScalars(m.ShortTerm, s.ShortTerm)
		m.LongTerm = mergeScalars(m.LongTerm, s.LongTerm)
		out.Memory = m
	}
	return out
}

// capHistory keeps the newest max turns. max <= 0 keeps everything.
func capHistory(d *contract.ContextData, max int) {
	if d == nil || d.Conversation == nil || max <= 0 {
		return
	}
	if h := d.Conversation.History; len(h) > max {
		c := *d.Conversation
		c.History = slices.Clone(h[len(h)-max:])
		d.Conversation = &c
	}
}

func cloneData(d *contract.ContextData) *contract.ContextData {
	if d == nil {
		return &contract.ContextData{}
	}
	cp := *d
	return &cp
}

func overwrite[T ~string](cur, next T) T {
	if next != "" {
		return next
	}
	return cur
}

func mergeScalars(dst, src contract.ScalarMap) contract.ScalarMap {
	if len(src) == 0 {
		return dst
	}
	out := make(contract.ScalarMap, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

func appendUnique(dst, src []string) []string {
	out := slices.Clone(dst)
	for _, s := range src {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
