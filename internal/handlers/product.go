package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/services"
)

// maxUploadMemory is the multipart size kept in memory before spilling to disk.
const maxUploadMemory = 32 << 20

type ProductHandler struct {
	catalog Catalog
}

func NewProductHandler(catalog Catalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// Add expects a multipart form with the product fields and files image1..image4.
func (h *ProductHandler) Add(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(c, errBadBody)
		return
	}

	images, closers, err := formImages(c)
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()
	if err != nil {
		respondError(c, err)
		return
	}

	in := services.ProductInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Price:       services.ParsePrice(c.PostForm("price")),
		Category:    c.PostForm("category"),
		SubCategory: c.PostForm("subCategory"),
		Sizes:       services.ParseSizes(c.PostForm("sizes")),
		Bestseller:  services.ParseBool(c.PostForm("bestseller")),
	}
	product, err := h.catalog.Add(c.Request.Context(), in, images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Product Added", "product": product})
}

func formImages(c *gin.Context) ([]services.ImageUpload, []io.Closer, error) {
	var (
		images  []services.ImageUpload
		closers []io.Closer
	)
	for i := 1; i <= models.MaxProductImages; i++ {
		fh, err := c.FormFile(fmt.Sprintf("image%d", i))
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				continue
			}
			return nil, closers, errBadBody
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closers, apperr.Validation(fmt.Sprintf("image%d could not be read", i))
		}
		closers = append(closers, f)
		images = append(images, services.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return images, closers, nil
}

func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func (h *ProductHandler) Search(c *gin.Context) {
	products, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

func (h *ProductHandler) Delete(c *gin.Context) {
	product, err := h.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product Removed", "product": product})
}
