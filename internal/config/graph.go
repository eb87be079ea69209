package config

import (
	"fmt"
	"sort"
	"strings"
)

// StartOrder returns the process names ordered so that every process comes
// after the processes it depends on. Ties are broken by name.
func (m *Manifest) StartOrder() ([]string, error) {
	deps := make(map[string][]string, len(m.Processes))
	for _, name := range m.Names() {
		deps[name] = nil
		if p := m.Processes[name]; p != nil {
			for _, dep := range p.DependsOn {
				deps[name] = append(deps[name], dep.Target)
			}
		}
	}
	// Edges run from a dependency to its dependents.
	edges := make(map[string][]string, len(deps))
	for name, targets := range deps {
		if _, ok := edges[name]; !ok {
			edges[name] = nil
		}
		for _, target := range targets {
			edges[target] = append(edges[target], name)
		}
	}
	order, err := topoSort(edges)
	if err != nil {
		// Report the cycle along dependsOn edges.
		if cycle := detectCycle(deps); cycle != nil {
			return nil, fmt.Errorf("dependsOn: dependency cycle detected: %s", strings.Join(cycle, " -> "))
		}
		return nil, err
	}
	return order, nil
}

func validateDependencies(m *Manifest) error {
	for _, name := range m.Names() {
		p := m.Processes[name]
		seen := make(map[string]bool, len(p.DependsOn))
		for i, dep := range p.DependsOn {
			field := processField(name, fmt.Sprintf("dependsOn[%d]", i))
			target, ok := m.Processes[dep.Target]
			switch {
			case dep.Target == name:
				return fmt.Errorf("%s: process cannot depend on itself", field)
			case !ok:
				return fmt.Errorf("%s: unknown process %q", field, dep.Target)
			case seen[dep.Target]:
				return fmt.Errorf("%s: duplicate dependency on %q", field, dep.Target)
			}
			seen[dep.Target] = true
			switch dep.Require {
			case RequireStarted, RequireExited:
			case RequireReady:
				if target.Ready == nil {
					return fmt.Errorf("%s: %q has no ready pattern", field, dep.Target)
				}
			default:
				return fmt.Errorf("%s: unknown requirement %q", field, dep.Require)
			}
			if dep.Timeout.Duration < 0 {
				return fmt.Errorf("%s.timeout: must not be negative", field)
			}
		}
	}
	_, err := m.StartOrder()
	return err
}

// topoSort orders nodes so that each node precedes the nodes its edges
// point at. Among available nodes the smallest name goes first.
func topoSort(edges map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(edges))
	for from := range edges {
		if _, ok := indegree[from]; !ok {
			indegree[from] = 0
		}
		for _, to := range edges[from] {
			indegree[to]++
		}
	}
	queue := make([]string, 0, len(indegree))
	for node, deg := range indegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}
	order := make([]string, 0, len(indegree))
	for len(queue) > 0 {
		sort.Strings(queue)
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, next := range edges[node] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(indegree) {
		return nil, fmt.Errorf("dependsOn: dependency cycle detected")
	}
	return order, nil
}

func detectCycle(edges map[string][]string) []string {
	visited := make(map[string]bool)
	var path []string

	onPath := func(node string) int {
		for i, cur := range path {
			if cur == node {
				return i
			}
		}
		return -1
	}

	var dfs func(string) []string
	dfs = func(node string) []string {
		visited[node] = true
		path = append(path, node)
		for _, next := range edges[node] {
			if idx := onPath(next); idx >= 0 {
				cycle := append([]string(nil), path[idx:]...)
				return append(cycle, next)
			}
			if !visited[next] {
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	nodes := make([]string, 0, len(edges))
	for node := range edges {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if !visited[node] {
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
