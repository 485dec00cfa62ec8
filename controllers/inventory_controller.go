package controllers

import (
	"net/http"

	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/services"

	"github.com/gin-gonic/gin"
)

func (s *Srv) CreateItem(c *gin.Context) {
	var in services.ItemInput
	if !bindJSON(c, &in) {
		return
	}
	it, err := s.Inventory.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusCreated, "Inventory created successfully", it)
}

func (s *Srv) ListAvailableItems(c *gin.Context) {
	items, err := s.Inventory.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventories retrieved successfully", items)
}

func (s *Srv) ListAllItems(c *gin.Context) {
	items, err := s.Inventory.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventories retrieved successfully", items)
}

func (s *Srv) ListRentedItems(c *gin.Context) {
	items, err := s.Inventory.ListRented(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Rented inventories retrieved successfully", items)
}

func (s *Srv) GetItem(c *gin.Context) {
	it, err := s.Inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventory retrieved successfully", it)
}

func (s *Srv) UpdateItem(c *gin.Context) {
	var in services.ItemUpdateInput
	if !bindJSON(c, &in) {
		return
	}
	it, err := s.Inventory.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventory updated successfully", it)
}

func (s *Srv) DeleteItem(c *gin.Context) {
	it, err := s.Inventory.Delete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventory deleted successfully", it)
}

func (s *Srv) StartItemRental(c *gin.Context) {
	var in services.RentItemInput
	if !bindJSON(c, &in) {
		return
	}
	l, err := s.Inventory.StartRental(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventory rented successfully", l)
}

func (s *Srv) EndItemRental(c *gin.Context) {
	var in services.RentItemInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := s.Inventory.EndRental(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventory returned successfully", res)
}
