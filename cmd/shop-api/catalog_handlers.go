package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/acampos/tienda-api/internal/product"
)

// @Summary List products
// @Tags catalog
// @Produce json
// @Param q query string false "search"
// @Param category_id query string false "category filter"
// @Param min_price query string false "minimum price"
// @Param max_price query string false "maximum price"
// @Param featured query bool false "featured only"
// @Success 200 {object} product.ListResponse
// @Router /products [get]
func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		q := product.Query{
			Q:          c.Query("q"),
			CategoryID: c.Query("category_id"),
			MinPrice:   c.Query("min_price"),
			MaxPrice:   c.Query("max_price"),
			Limit:      limit,
			Offset:     offset,
		}
		if v, ok := c.GetQuery("featured"); ok {
			f := v == "true" || v == "1"
			q.Featured = &f
		}

		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			log.Error().Err(err).Msg("list products")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if items == nil {
			items = []product.Product{}
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q.Q, Limit: limit, Offset: offset, Items: items})
	}
}

// @Summary Get a product
// @Tags catalog
// @Produce json
// @Param id path string true "product id"
// @Success 200 {object} product.Product
// @Router /products/{id} [get]
func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if err == product.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("get product")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary Min/max catalog price
// @Tags catalog
// @Produce json
// @Success 200 {object} product.PriceRange
// @Router /products/price-range [get]
func priceRangeHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		pr, err := repo.PriceRange(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("price range")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, pr)
	}
}

// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {array} product.Category
// @Router /categories [get]
func listCategoriesHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := repo.ListCategories(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("list categories")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if cats == nil {
			cats = []product.Category{}
		}
		c.JSON(http.StatusOK, cats)
	}
}
