package inkwell

// Paginator is a struct that holds one page of posts together with the total number of pages, the current page,
// the next and previous pages, the page size, whether there are more pages and the total number of posts.
type Paginator struct {
	TotalPages  int
	CurrentPage int
	NextPage    int
	PrevPage    int
	PageSize    int
	HasNext     bool
	HasPrev     bool
	HasPosts    bool
	TotalPosts  int
	Posts       []*Post // Posts on the current page
}

// NewPaginator returns the page of posts at currentPage. Pages start at 1; out of range pages are clamped.
func NewPaginator(posts []*Post, currentPage, pageSize int) Paginator {
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(posts)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if currentPage < 1 {
		currentPage = 1
	}
	if currentPage > totalPages {
		currentPage = totalPages
	}

	nextPage := currentPage + 1
	prevPage := currentPage - 1

	if nextPage > totalPages {
		nextPage = totalPages
	}

	if prevPage < 1 {
		prevPage = 1
	}

	start := (currentPage - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	return Paginator{
		TotalPages:  totalPages,
		CurrentPage: currentPage,
		NextPage:    nextPage,
		PrevPage:    prevPage,
		PageSize:    pageSize,
		HasNext:     currentPage < totalPages,
		HasPrev:     currentPage > 1,
		HasPosts:    end > start,
		TotalPosts:  total,
		Posts:       posts[start:end],
	}
}
