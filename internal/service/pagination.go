package service

// pageWindow clamps page into [1, numPages] and returns the row offset. An
// empty collection still has one (empty) page.
func pageWindow(page int, total int64, size int) (clamped, numPages, offset int) {
	if size <= 0 {
		size = 1
	}
	numPages = int((total + int64(size) - 1) / int64(size))
	if numPages < 1 {
		numPages = 1
	}
	clamped = page
	if clamped < 1 {
		clamped = 1
	}
	if clamped > numPages {
		clamped = numPages
	}
	return clamped, numPages, (clamped - 1) * size
}
