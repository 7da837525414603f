package client

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Graph addresses one named graph on an instance that was started with
// the graph extension module loaded.
type Graph struct {
	c    *Client
	name string
}

// SelectGraph returns a handle for the named graph. No command is sent;
// graphs come into existence on first write.
func (c *Client) SelectGraph(name string) *Graph {
	return &Graph{c: c, name: name}
}

// ListGraphs returns the names of all graphs on the instance.
func (c *Client) ListGraphs(ctx context.Context) ([]string, error) {
	res, err := c.rdb.Do(ctx, "GRAPH.LIST").Result()
	if err != nil {
		return nil, err
	}
	items, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected GRAPH.LIST reply %T", res)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, fmt.Sprint(it))
	}
	return names, nil
}

// Name returns the graph's key name.
func (g *Graph) Name() string { return g.name }

// QueryResult carries the rows and the execution statistics of one
// graph query.
type QueryResult struct {
	// Columns are the result header names; empty for pure writes.
	Columns []string
	// Rows are the result records, one value per column.
	Rows [][]interface{}
	// Statistics are the "Name: value" lines the server reports, e.g.
	// "Nodes created" or "Query internal execution time".
	Statistics map[string]string
}

// Stat returns one statistics value by its reported name.
func (r *QueryResult) Stat(name string) (string, bool) {
	v, ok := r.Statistics[name]
	return v, ok
}

// Query runs a Cypher query against the graph. A positive timeout is
// passed to the server; negative timeouts are rejected. Params are
// bound via a CYPHER header so values need no manual quoting.
func (g *Graph) Query(ctx context.Context, query string, params map[string]interface{}, timeout time.Duration) (*QueryResult, error) {
	return g.run(ctx, "GRAPH.QUERY", query, params, timeout)
}

// ROQuery is Query restricted to read-only execution; the server
// rejects writes, which makes it safe against replicas.
func (g *Graph) ROQuery(ctx context.Context, query string, params map[string]interface{}, timeout time.Duration) (*QueryResult, error) {
	return g.run(ctx, "GRAPH.RO_QUERY", query, params, timeout)
}

func (g *Graph) run(ctx context.Context, cmd, query string, params map[string]interface{}, timeout time.Duration) (*QueryResult, error) {
	if timeout < 0 {
		return nil, fmt.Errorf("negative query timeout %s", timeout)
	}
	q := paramsHeader(params) + query
	args := []interface{}{cmd, g.name, q}
	if timeout > 0 {
		args = append(args, "TIMEOUT", strconv.FormatInt(timeout.Milliseconds(), 10))
	}
	res, err := g.c.rdb.Do(ctx, args...).Result()
	if err != nil {
		return nil, err
	}
	return parseQueryReply(res)
}

// Delete removes the graph and all its data.
func (g *Graph) Delete(ctx context.Context) error {
	return g.c.rdb.Do(ctx, "GRAPH.DELETE", g.name).Err()
}

// Copy clones the graph under a new key and returns a handle to it.
func (g *Graph) Copy(ctx context.Context, dest string) (*Graph, error) {
	if err := g.c.rdb.Do(ctx, "GRAPH.COPY", g.name, dest).Err(); err != nil {
		return nil, err
	}
	return &Graph{c: g.c, name: dest}, nil
}

// Slowlog returns the raw slow query log entries for the graph.
func (g *Graph) Slowlog(ctx context.Context) ([]interface{}, error) {
	res, err := g.c.rdb.Do(ctx, "GRAPH.SLOWLOG", g.name).Result()
	if err != nil {
		return nil, err
	}
	items, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected GRAPH.SLOWLOG reply %T", res)
	}
	return items, nil
}

// paramsHeader renders the CYPHER parameter prefix. Keys are emitted in
// sorted order so queries are reproducible.
func paramsHeader(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("CYPHER ")
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(formatParam(params[k]))
		sb.WriteByte(' ')
	}
	return sb.String()
}

func formatParam(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case nil:
		return "null"
	default:
		return fmt.Sprint(t)
	}
}

// parseQueryReply splits the server reply into header, rows, and
// statistics. Pure writes reply with a single statistics array; reads
// reply with header, rows, and statistics.
func parseQueryReply(res interface{}) (*QueryResult, error) {
	outer, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected query reply %T", res)
	}
	out := &QueryResult{Statistics: map[string]string{}}
	switch len(outer) {
	case 1:
		parseStats(out, outer[0])
	case 3:
		if hdr, ok := outer[0].([]interface{}); ok {
			for _, col := range hdr {
				out.Columns = append(out.Columns, fmt.Sprint(col))
			}
		}
		if rows, ok := outer[1].([]interface{}); ok {
			for _, row := range rows {
				if cells, ok := row.([]interface{}); ok {
					out.Rows = append(out.Rows, cells)
				}
			}
		}
		parseStats(out, outer[2])
	default:
		return nil, fmt.Errorf("unexpected query reply arity %d", len(outer))
	}
	return out, nil
}

func parseStats(out *QueryResult, raw interface{}) {
	lines, ok := raw.([]interface{})
	if !ok {
		return
	}
	for _, l := range lines {
		line := fmt.Sprint(l)
		if name, val, found := strings.Cut(line, ": "); found {
			out.Statistics[name] = val
		}
	}
}
