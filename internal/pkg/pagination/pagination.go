package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
}

// Offset returns the number of rows to skip.
func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// Normalize clamps page and size into their valid ranges.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Size < 1 {
		q.Size = DefaultSize
	}
	if q.Size > MaxSize {
		q.Size = MaxSize
	}
	return q
}

// FromContext extracts and validates pagination params from the request.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.DefaultQuery("page", "1"), DefaultPage)
	size := parseIntOr(c.DefaultQuery("size", "10"), DefaultSize)
	return Query{Page: page, Size: size}.Normalize()
}

// Paginate applies limit/offset to a GORM query and returns the total row count.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (int64, error) {
	q = q.Normalize()
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Window returns the [start, end) bounds of page q over n items.
func Window(q Query, n int) (int, int) {
	q = q.Normalize()
	start := q.Offset()
	if start > n {
		start = n
	}
	end := start + q.Size
	if end > n {
		end = n
	}
	return start, end
}

// Meta builds the pagination envelope for a page of a result with total rows.
func Meta(q Query, total int64) response.Pagination {
	q = q.Normalize()
	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
