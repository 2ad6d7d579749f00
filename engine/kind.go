package engine

import (
	"slices"

	"xpo/config"
	"xpo/host"
)

//go:generate go tool go-enum --names

// Kind is the role node plays in clipping hierarchy. It is decided once when
// node is recorded and never changes afterwards.
// ENUM(plain, list, list-item, scroll, swiper, swiper-slide, pull-header)
type Kind uint8

// IsListView reports native recycling list.
func (k Kind) IsListView() bool { return k == KindList }

// IsScrollView is true for scroll views and swipers, paging is implemented
// by native scroll view.
func (k Kind) IsScrollView() bool { return k == KindScroll || k == KindSwiper }

// IsContainer reports whether nodes of this kind clip their descendants.
func (k Kind) IsContainer() bool { return k.IsListView() || k.IsScrollView() }

// classify decides node kind. Order matters: list tag wins over anything,
// then dedicated component tags, then scrolling style.
func classify(n host.Node, style host.Style, tags *config.TagsConfig, custom []string) Kind {
	tag := n.Tag()
	switch tag {
	case tags.List:
		return KindList
	case tags.Swiper:
		return KindSwiper
	case tags.SwiperSlide:
		return KindSwiperSlide
	case tags.PullHeader:
		return KindPullHeader
	case tags.ListItem:
		return KindListItem
	}
	if style.Get("overflowX") == "scroll" || style.Get("overflowY") == "scroll" {
		return KindScroll
	}
	if slices.Contains(custom, tag) {
		return KindScroll
	}
	return KindPlain
}
