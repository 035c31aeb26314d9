package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/acampos/tienda-api/internal/auth"
	"github.com/acampos/tienda-api/internal/httpx"
	"github.com/acampos/tienda-api/internal/product"
	"github.com/acampos/tienda-api/internal/user"
)

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.IsAdmin(c.GetString(httpx.CtxRole)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func validPrice(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && !d.IsNegative()
}

// @Summary Create a product
// @Tags admin
// @Accept json
// @Produce json
// @Param request body product.CreateProductRequest true "product"
// @Success 201 {object} product.Product
// @Router /admin/products [post]
func createProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Name == "" || !validPrice(req.Price) || req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name, non-negative price and stock are required"})
			return
		}
		p := &product.Product{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			CategoryID:  req.CategoryID,
			Featured:    req.Featured,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			log.Error().Err(err).Msg("create product")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// @Summary Update a product
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "product id"
// @Param request body product.UpdateProductRequest true "fields to update"
// @Success 200 {object} product.Product
// @Router /admin/products/{id} [put]
func updateProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.UpdateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}

		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("get product")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		updatePrice := req.Price != ""
		if updatePrice && !validPrice(req.Price) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		if req.Name != "" {
			cur.Name = req.Name
		}
		if req.Description != "" {
			cur.Description = req.Description
		}
		if updatePrice {
			cur.Price = req.Price
		}
		if req.Stock != nil {
			if *req.Stock < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be non-negative"})
				return
			}
			cur.Stock = *req.Stock
		}
		if req.CategoryID != "" {
			cur.CategoryID = req.CategoryID
		}
		if req.Featured != nil {
			cur.Featured = *req.Featured
		}

		if err := repo.Update(c.Request.Context(), cur, updatePrice); err != nil {
			log.Error().Err(err).Msg("update product")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, cur)
	}
}

// @Summary Delete a product
// @Tags admin
// @Param id path string true "product id"
// @Success 204
// @Router /admin/products/{id} [delete]
func deleteProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			log.Error().Err(err).Msg("delete product")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type updateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary Update a user account
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "user id"
// @Param request body updateUserRequest true "fields to update"
// @Success 200 {object} user.User
// @Router /admin/users/{id} [put]
func updateUserHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		u, err := svc.UpdateUser(c.Request.Context(), c.Param("id"), req.Username, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, user.ErrAlreadyExist):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				log.Error().Err(err).Msg("update user")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary Delete a user account
// @Tags admin
// @Param id path string true "user id"
// @Success 204
// @Router /admin/users/{id} [delete]
func deleteUserHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
			switch {
			case errors.Is(err, user.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, user.ErrHasOrders):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				log.Error().Err(err).Msg("delete user")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary Create a category
// @Tags admin
// @Accept json
// @Produce json
// @Param request body product.CreateCategoryRequest true "category"
// @Success 201 {object} product.Category
// @Router /admin/categories [post]
func createCategoryHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.CreateCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		cat := &product.Category{ID: uuid.NewString(), Name: req.Name}
		if err := repo.CreateCategory(c.Request.Context(), cat); err != nil {
			if errors.Is(err, product.ErrCategoryExists) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("create category")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}
