package quorumproposal

import (
	"github.com/google/btree"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

const certCacheDegree = 8

type cachedCert[C any] struct {
	view model.View
	cert C
}

// certCache holds formed certificates ordered by view. It is not safe for
// concurrent use.
type certCache[C any] struct {
	tree *btree.BTreeG[cachedCert[C]]
}

func newCertCache[C any]() *certCache[C] {
	return &certCache[C]{
		tree: btree.NewG(certCacheDegree, func(a, b cachedCert[C]) bool { return a.view < b.view }),
	}
}

func (c *certCache[C]) put(view model.View, cert C) {
	c.tree.ReplaceOrInsert(cachedCert[C]{view: view, cert: cert})
}

func (c *certCache[C]) get(view model.View) (C, bool) {
	e, ok := c.tree.Get(cachedCert[C]{view: view})
	return e.cert, ok
}

// pruneBelow drops the certificates of views before view.
func (c *certCache[C]) pruneBelow(view model.View) {
	for {
		min, ok := c.tree.Min()
		if !ok || min.view >= view {
			return
		}
		c.tree.DeleteMin()
	}
}

func (c *certCache[C]) views() []model.View {
	views := make([]model.View, 0, c.tree.Len())
	c.tree.Ascend(func(e cachedCert[C]) bool {
		views = append(views, e.view)
		return true
	})
	return views
}
