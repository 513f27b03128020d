package service

import (
	"context"
	"slices"

	"newsadvance/internal/config"
	"newsadvance/internal/models"
	"newsadvance/internal/observability"
	"newsadvance/internal/repository"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

// FlattenedAnchorLimit caps the flattened descendants listed under one anchor.
const FlattenedAnchorLimit = 100

// ThreadSettings shapes thread pages.
type ThreadSettings struct {
	PageSize        int
	ReplyWindow     int
	RepliesPageSize int
	DisplayMode     string
	FlattenDepth    int
	MaxDisplayDepth int
}

// ThreadSettingsFromConfig extracts thread assembly settings.
func ThreadSettingsFromConfig(cfg *config.Config) ThreadSettings {
	return ThreadSettings{
		PageSize:        cfg.CommentPageSize,
		ReplyWindow:     cfg.CommentReplyWindow,
		RepliesPageSize: cfg.CommentRepliesPageSize,
		DisplayMode:     cfg.CommentDisplayMode,
		FlattenDepth:    cfg.CommentFlattenDepth,
		MaxDisplayDepth: cfg.CommentMaxDisplayDepth,
	}
}

// DisplayModeSelector picks the display mode for a user, falling back to the
// deployment default.
type DisplayModeSelector interface {
	DisplayMode(fallback string, userID uint) string
}

// ThreadPage is one page of top-level comments with their reply windows.
type ThreadPage struct {
	Results       []*CommentView `json:"results"`
	NumPages      int            `json:"num_pages"`
	TotalComments int64          `json:"total_comments"`
	Page          int            `json:"page"`
}

// RepliesPage is one page of a comment's direct replies.
type RepliesPage struct {
	Results  []*CommentView `json:"results"`
	NumPages int            `json:"num_pages"`
	Page     int            `json:"page"`
}

type ThreadService struct {
	comments repository.CommentRepository
	votes    repository.VoteRepository
	users    repository.UserRepository
	modes    DisplayModeSelector
	settings ThreadSettings
}

func NewThreadService(
	comments repository.CommentRepository,
	votes repository.VoteRepository,
	users repository.UserRepository,
	modes DisplayModeSelector,
	settings ThreadSettings,
) *ThreadService {
	if settings.PageSize <= 0 {
		settings.PageSize = 10
	}
	if settings.RepliesPageSize <= 0 {
		settings.RepliesPageSize = 10
	}
	if settings.ReplyWindow < 0 {
		settings.ReplyWindow = 0
	}
	if settings.FlattenDepth < 1 {
		settings.FlattenDepth = 5
	}
	if settings.MaxDisplayDepth < 1 {
		settings.MaxDisplayDepth = 20
	}
	if settings.DisplayMode == "" {
		settings.DisplayMode = config.DisplayModeFlattened
	}
	return &ThreadService{comments: comments, votes: votes, users: users, modes: modes, settings: settings}
}

func (s *ThreadService) modeFor(viewer *Viewer) string {
	if s.modes == nil {
		return s.settings.DisplayMode
	}
	return s.modes.DisplayMode(s.settings.DisplayMode, viewer.id())
}

// ListTopLevel returns a page of an article's top-level comments, each with a
// window of its replies.
func (s *ThreadService) ListTopLevel(ctx context.Context, articleID uint, viewer *Viewer, page int) (*ThreadPage, error) {
	mode := s.modeFor(viewer)
	defer observability.TrackThreadAssembly(mode)()
	span, ctx := observability.NewSpan(ctx, "thread.list_top_level",
		attribute.Int("article_id", int(articleID)),
		attribute.String("mode", mode),
	)
	defer span.End()

	var topCount, total int64
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		topCount, err = s.comments.CountTopLevel(ctx, articleID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		total, err = s.comments.CountByArticle(ctx, articleID)
		return err
	})
	if err := p.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	clamped, numPages, offset := pageWindow(page, topCount, s.settings.PageSize)
	top, err := s.comments.ListTopLevel(ctx, articleID, offset, s.settings.PageSize)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	tree, err := s.assemble(ctx, top, mode)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	results, err := s.render(ctx, tree, viewer)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return &ThreadPage{Results: results, NumPages: numPages, TotalComments: total, Page: clamped}, nil
}

// Replies pages the direct replies of a comment. Each reply carries its
// reply_count but no nested replies.
func (s *ThreadService) Replies(ctx context.Context, commentID uint, viewer *Viewer, page int) (*RepliesPage, error) {
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	count, err := s.comments.CountChildren(ctx, commentID)
	if err != nil {
		return nil, err
	}
	clamped, numPages, offset := pageWindow(page, count, s.settings.RepliesPageSize)
	children, err := s.comments.ListChildren(ctx, commentID, offset, s.settings.RepliesPageSize)
	if err != nil {
		return nil, err
	}

	tree := &threadTree{roots: children, children: map[uint][]*models.Comment{}, byID: map[uint]*models.Comment{}}
	for _, c := range children {
		tree.byID[c.ID] = c
	}
	results, err := s.render(ctx, tree, viewer)
	if err != nil {
		return nil, err
	}
	return &RepliesPage{Results: results, NumPages: numPages, Page: clamped}, nil
}

// View serializes a single comment for viewer, e.g. in a mutation response.
func (s *ThreadService) View(ctx context.Context, c *models.Comment, viewer *Viewer) (*CommentView, error) {
	tree := &threadTree{
		roots:    []*models.Comment{c},
		children: map[uint][]*models.Comment{},
		byID:     map[uint]*models.Comment{c.ID: c},
	}
	views, err := s.render(ctx, tree, viewer)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// Views serializes a flat list of comments without their replies, keeping the
// given order.
func (s *ThreadService) Views(ctx context.Context, comments []*models.Comment, viewer *Viewer) ([]*CommentView, error) {
	if len(comments) == 0 {
		return []*CommentView{}, nil
	}
	tree := &threadTree{
		roots:    comments,
		children: map[uint][]*models.Comment{},
		byID:     make(map[uint]*models.Comment, len(comments)),
	}
	for _, c := range comments {
		tree.byID[c.ID] = c
	}
	return s.render(ctx, tree, viewer)
}

// threadTree is the loaded shape of a page before serialization.
type threadTree struct {
	roots []*models.Comment
	// children holds the displayed replies of each node, in display order.
	children map[uint][]*models.Comment
	// flattened marks nodes shown under an anchor rather than their parent.
	flattened map[uint]bool
	byID      map[uint]*models.Comment
}

// assemble loads the displayed descendants of roots one level per query.
func (s *ThreadService) assemble(ctx context.Context, roots []*models.Comment, mode string) (*threadTree, error) {
	tree := &threadTree{
		roots:     roots,
		children:  make(map[uint][]*models.Comment),
		flattened: make(map[uint]bool),
		byID:      make(map[uint]*models.Comment, len(roots)),
	}
	for _, c := range roots {
		tree.byID[c.ID] = c
	}

	// nested: levels stop at the display bound; flattened: nested levels stop
	// at the anchor depth and everything below is gathered per anchor.
	lastNested := s.settings.MaxDisplayDepth - 1
	if mode == config.DisplayModeFlattened && s.settings.FlattenDepth-1 < lastNested {
		lastNested = s.settings.FlattenDepth - 1
	}

	frontier := roots
	for depth := 1; depth <= lastNested && len(frontier) > 0; depth++ {
		children, err := s.comments.ListChildrenOf(ctx, ids(frontier), s.settings.ReplyWindow)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			tree.children[*c.ParentID] = append(tree.children[*c.ParentID], c)
			tree.byID[c.ID] = c
		}
		frontier = children
	}

	if mode != config.DisplayModeFlattened || len(frontier) == 0 || lastNested != s.settings.FlattenDepth-1 {
		return tree, nil
	}
	if err := s.gatherFlattened(ctx, tree, frontier); err != nil {
		return nil, err
	}
	return tree, nil
}

// gatherFlattened attaches descendants of each anchor to the anchor itself,
// walking down one level per query. Each level keeps only the best nodes that
// still fit in the anchor's FlattenedAnchorLimit budget, so an anchor never
// loads more than its budget of rows per parent.
func (s *ThreadService) gatherFlattened(ctx context.Context, tree *threadTree, anchors []*models.Comment) error {
	anchorOf := make(map[uint]uint, len(anchors))
	for _, a := range anchors {
		anchorOf[a.ID] = a.ID
	}
	collected := make(map[uint][]*models.Comment, len(anchors))
	remaining := func(anchor uint) int { return FlattenedAnchorLimit - len(collected[anchor]) }

	frontier := anchors
	for level := 0; level < s.settings.MaxDisplayDepth && len(frontier) > 0; level++ {
		perParent := 0
		for _, c := range frontier {
			perParent = max(perParent, remaining(anchorOf[c.ID]))
		}
		children, err := s.comments.ListChildrenOf(ctx, ids(frontier), perParent)
		if err != nil {
			return err
		}

		byAnchor := make(map[uint][]*models.Comment)
		for _, c := range children {
			anchor := anchorOf[*c.ParentID]
			byAnchor[anchor] = append(byAnchor[anchor], c)
		}

		var next []*models.Comment
		for anchor, found := range byAnchor {
			slices.SortFunc(found, compareThreadOrder)
			if budget := remaining(anchor); len(found) > budget {
				found = found[:budget]
			}
			for _, c := range found {
				anchorOf[c.ID] = anchor
				tree.byID[c.ID] = c
			}
			collected[anchor] = append(collected[anchor], found...)
			next = append(next, found...)
		}
		frontier = next
	}

	for anchor, descendants := range collected {
		slices.SortFunc(descendants, compareThreadOrder)
		tree.children[anchor] = descendants
		for _, c := range descendants {
			tree.flattened[c.ID] = true
		}
	}
	return nil
}

// compareThreadOrder sorts by score, then newest, then highest id.
func compareThreadOrder(a, b *models.Comment) int {
	switch {
	case a.CachedScore != b.CachedScore:
		return b.CachedScore - a.CachedScore
	case !a.CreatedAt.Equal(b.CreatedAt):
		return b.CreatedAt.Compare(a.CreatedAt)
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// render serializes the tree. Votes, reply counts and authors load concurrently.
func (s *ThreadService) render(ctx context.Context, tree *threadTree, viewer *Viewer) ([]*CommentView, error) {
	all := make([]uint, 0, len(tree.byID))
	authorIDs := make([]uint, 0, len(tree.byID))
	seenAuthor := make(map[uint]struct{})
	for id, c := range tree.byID {
		all = append(all, id)
		if _, ok := seenAuthor[c.UserID]; !ok {
			seenAuthor[c.UserID] = struct{}{}
			authorIDs = append(authorIDs, c.UserID)
		}
	}

	var (
		votes   map[uint]int
		counts  map[uint]int
		authors map[uint]models.UserSummary
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		votes, err = s.votes.GetValues(ctx, viewer.id(), all)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		counts, err = s.comments.CountChildrenOf(ctx, all)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		authors, err = s.users.GetSummaries(ctx, authorIDs)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	var build func(c *models.Comment) *CommentView
	build = func(c *models.Comment) *CommentView {
		var userVote *int
		if v, ok := votes[c.ID]; ok {
			userVote = &v
		}
		view := NewCommentView(c, viewer, authors[c.UserID], userVote)
		view.ReplyCount = counts[c.ID]
		if tree.flattened[c.ID] {
			view.DisplayDepth = s.settings.FlattenDepth
			if parent, ok := tree.byID[*c.ParentID]; ok {
				view.ReplyTo = &ReplyTo{ParentID: parent.ID, ParentUsername: authors[parent.UserID].Username}
			}
		}
		for _, child := range tree.children[c.ID] {
			view.Replies = append(view.Replies, build(child))
		}
		return view
	}

	out := make([]*CommentView, 0, len(tree.roots))
	for _, c := range tree.roots {
		out = append(out, build(c))
	}
	return out, nil
}

func ids(comments []*models.Comment) []uint {
	out := make([]uint, len(comments))
	for i, c := range comments {
		out[i] = c.ID
	}
	return out
}
