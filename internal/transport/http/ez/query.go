package ez

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	resp "ethio-home/internal/transport/http/response"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	DefaultSort  = "-createdAt"
)

var (
	reservedKeys = map[string]struct{}{"page": {}, "sort": {}, "limit": {}, "fields": {}}
	opKey        = regexp.MustCompile(`^([A-Za-z0-9_]+)\[(gte|gt|lte|lt|ne)\]$`)
)

// columns json 名 / 列名 → 字段；json:"-" 的字段不可被查询
type columns map[string]*schema.Field

func columnsOf(db *gorm.DB, model any) (columns, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, err
	}
	cols := columns{}
	for _, f := range stmt.Schema.Fields {
		if f.DBName == "" {
			continue
		}
		j := jsonName(f)
		if j == "-" {
			continue
		}
		cols[f.DBName] = f
		if j != "" {
			cols[j] = f
		}
	}
	return cols, nil
}

func jsonName(f *schema.Field) string {
	return strings.SplitN(f.StructField.Tag.Get("json"), ",", 2)[0]
}

func (cols columns) outputName(f *schema.Field) string {
	if j := jsonName(f); j != "" {
		return j
	}
	return f.DBName
}

// ListParams 解析后的 page/limit/sort/fields/filter
type ListParams struct {
	Page    int
	Limit   int
	PageSet bool
	Filters []clause.Expression
	Order   []clause.OrderByColumn
	Fields  []string
}

func (p ListParams) Skip() int { return (p.Page - 1) * p.Limit }

func parseListParams(q url.Values, cols columns) (ListParams, error) {
	p := ListParams{Page: 1, Limit: DefaultLimit}

	if raw, ok := q["page"]; ok && len(raw) > 0 {
		n, err := strconv.Atoi(raw[0])
		if err != nil || n < 1 {
			return p, NotFound(MsgPageNotExist)
		}
		p.Page, p.PageSet = n, true
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}

	for key, vals := range q {
		if _, skip := reservedKeys[key]; skip || len(vals) == 0 {
			continue
		}
		name, op := key, ""
		if m := opKey.FindStringSubmatch(key); m != nil {
			name, op = m[1], m[2]
		}
		f, ok := cols[name]
		if !ok {
			continue
		}
		expr, err := filterExpr(f, op, vals)
		if err != nil {
			return p, BadRequest(fmt.Sprintf("Invalid %s: %s", name, strings.Join(vals, ",")))
		}
		p.Filters = append(p.Filters, expr)
	}

	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = DefaultSort
	}
	for _, s := range strings.Split(sortBy, ",") {
		s = strings.TrimSpace(s)
		desc := strings.HasPrefix(s, "-")
		f, ok := cols[strings.TrimPrefix(s, "-")]
		if !ok {
			continue
		}
		p.Order = append(p.Order, clause.OrderByColumn{Column: col(f.DBName), Desc: desc})
	}
	if len(p.Order) == 0 {
		p.Order = append(p.Order, clause.OrderByColumn{Column: col("created_at"), Desc: true})
	}

	if raw := q.Get("fields"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if f, ok := cols[strings.TrimSpace(s)]; ok {
				p.Fields = append(p.Fields, cols.outputName(f))
			}
		}
	}
	return p, nil
}

func col(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

func filterExpr(f *schema.Field, op string, raw []string) (clause.Expression, error) {
	c := col(f.DBName)
	if op == "" && len(raw) > 1 {
		vals := make([]any, 0, len(raw))
		for _, r := range raw {
			v, err := convertValue(f, r)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return clause.IN{Column: c, Values: vals}, nil
	}
	v, err := convertValue(f, raw[0])
	if err != nil {
		return nil, err
	}
	switch op {
	case "gte":
		return clause.Gte{Column: c, Value: v}, nil
	case "gt":
		return clause.Gt{Column: c, Value: v}, nil
	case "lte":
		return clause.Lte{Column: c, Value: v}, nil
	case "lt":
		return clause.Lt{Column: c, Value: v}, nil
	case "ne":
		return clause.Neq{Column: c, Value: v}, nil
	default:
		return clause.Eq{Column: c, Value: v}, nil
	}
}

func convertValue(f *schema.Field, raw string) (any, error) {
	switch f.DataType {
	case schema.Bool:
		return strconv.ParseBool(raw)
	case schema.Int, schema.Uint:
		return strconv.ParseInt(raw, 10, 64)
	case schema.Float:
		return strconv.ParseFloat(raw, 64)
	case schema.Time:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return time.Parse(time.DateOnly, raw)
	}
	if strings.HasPrefix(strings.ToLower(string(f.DataType)), "decimal") {
		return decimal.NewFromString(raw)
	}
	return raw, nil
}

// ListResult 一页数据
type ListResult[T any] struct {
	Items      []T
	Pagination resp.Pagination
	Fields     []string
}

// QueryList 在 q 上叠加过滤/排序/分页；显式 page 超出总数返回 404
func QueryList[T any](c *gin.Context, q *gorm.DB) (*ListResult[T], error) {
	var zero T
	cols, err := columnsOf(q, &zero)
	if err != nil {
		return nil, Internal("parse model", err)
	}
	p, err := parseListParams(c.Request.URL.Query(), cols)
	if err != nil {
		return nil, err
	}

	q = q.Model(&zero)
	for _, f := range p.Filters {
		q = q.Where(f)
	}
	base := q.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, Internal("count failed", err)
	}
	if p.PageSet && int64(p.Skip()) >= total {
		return nil, NotFound(MsgPageNotExist)
	}

	items := make([]T, 0, p.Limit)
	if err := base.Order(clause.OrderBy{Columns: p.Order}).Limit(p.Limit).Offset(p.Skip()).Find(&items).Error; err != nil {
		return nil, Internal("list failed", err)
	}
	return &ListResult[T]{Items: items, Pagination: resp.NewPagination(p.Page, p.Limit, total), Fields: p.Fields}, nil
}

// Project 按 fields 裁剪输出（id 始终保留）
func Project(items any, fields []string) (any, error) {
	if len(fields) == 0 {
		return items, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, err
	}
	keep := map[string]struct{}{"id": {}}
	for _, f := range fields {
		keep[f] = struct{}{}
	}
	for _, r := range rows {
		for k := range r {
			if _, ok := keep[k]; !ok {
				delete(r, k)
			}
		}
	}
	return rows, nil
}

// Respond 统一输出列表
func (r *ListResult[T]) Respond(c *gin.Context) {
	data, err := Project(r.Items, r.Fields)
	if err != nil {
		Fail(c, Internal("project fields", err))
		return
	}
	c.JSON(200, resp.List(data, len(r.Items), r.Pagination))
}
