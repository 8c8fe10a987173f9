package ir

import "fmt"

// ValidateIR checks reference integrity without executing anything: every
// phase action is declared, phase links resolve, loops are bounded, every
// kind is known to the registry, and at least one win condition exists.
func ValidateIR(g *GameIR) (bool, []string) {
	return NewRegistry().Validate(g)
}

// Validate is ValidateIR against this registry's kinds.
func (r *Registry) Validate(g *GameIR) (bool, []string) {
	if g == nil {
		return false, []string{"ir is nil"}
	}
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	declared := make(map[string]bool, len(g.Actions))
	for _, a := range g.Actions {
		if a.Name == "" {
			add("action with empty name")
			continue
		}
		if declared[a.Name] {
			add("action %q declared twice", a.Name)
		}
		declared[a.Name] = true
		for _, p := range a.Validate {
			r.checkPredicate(p, "action "+a.Name, add)
		}
		r.checkEffects(a.Effects, "action "+a.Name, add)
	}

	phases := make(map[string]bool, len(g.Phases))
	for _, p := range g.Phases {
		phases[p.Name] = true
	}
	if len(g.Phases) == 0 {
		add("no phases declared")
	}
	for _, p := range g.Phases {
		for _, a := range p.Actions {
			if !declared[a] {
				add("phase %q references undeclared action %q", p.Name, a)
			}
		}
		if p.Next != "" && !phases[p.Next] {
			add("phase %q links to unknown phase %q", p.Name, p.Next)
		}
		if p.ExitWhen != nil {
			r.checkPredicate(*p.ExitWhen, "phase "+p.Name, add)
		}
		r.checkEffects(p.OnEnter, "phase "+p.Name, add)
	}

	r.checkEffects(g.Setup, "setup", add)

	if len(g.WinConditions) == 0 {
		add("no win conditions")
	}
	for _, w := range g.WinConditions {
		r.checkPredicate(w.Predicate, "win condition "+w.ID, add)
	}
	return len(issues) == 0, issues
}

func (r *Registry) checkPredicate(p Predicate, where string, add func(string, ...any)) {
	if !r.KnowsPredicate(p.Kind) {
		add("%s: unknown predicate kind %q", where, p.Kind)
	}
	if p.Kind == PredNot && len(p.Args) != 1 {
		add("%s: not takes exactly one argument", where)
	}
	for _, a := range p.Args {
		r.checkPredicate(a, where, add)
	}
}

func (r *Registry) checkEffects(effects []Effect, where string, add func(string, ...any)) {
	for _, e := range effects {
		if !r.KnowsEffect(e.Kind) {
			add("%s: unknown effect kind %q", where, e.Kind)
		}
		if e.Kind == EffLoop && e.Max <= 0 {
			add("%s: loop without a positive max", where)
		}
		if e.If != nil {
			r.checkPredicate(*e.If, where, add)
		}
		if e.While != nil {
			r.checkPredicate(*e.While, where, add)
		}
		r.checkEffects(e.Then, where, add)
		r.checkEffects(e.Else, where, add)
		r.checkEffects(e.Effects, where, add)
	}
}
