package cache

import "time"

const (
	CategoriesKey  = "posts:categories"
	PopularTagsKey = "posts:popular_tags"
)

// MetadataTTL bounds staleness of the categories and popular-tags listings
// between the explicit invalidations on post create and delete.
const MetadataTTL = 5 * time.Minute
