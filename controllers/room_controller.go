package controllers

import (
	"net/http"

	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/services"

	"github.com/gin-gonic/gin"
)

func (s *Srv) CreateRoom(c *gin.Context) {
	var in services.RoomInput
	if !bindJSON(c, &in) {
		return
	}
	room, err := s.Rooms.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusCreated, "Room created successfully", room)
}

// ListAvailableRooms GET /api/rooms：未删除且空闲
func (s *Srv) ListAvailableRooms(c *gin.Context) {
	rooms, err := s.Rooms.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Rooms retrieved successfully", rooms)
}

func (s *Srv) ListAllRooms(c *gin.Context) {
	rooms, err := s.Rooms.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Rooms retrieved successfully", rooms)
}

func (s *Srv) ListRentedRooms(c *gin.Context) {
	rooms, err := s.Rooms.ListRented(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Rented rooms retrieved successfully", rooms)
}

func (s *Srv) GetRoom(c *gin.Context) {
	room, err := s.Rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Room retrieved successfully", room)
}

func (s *Srv) UpdateRoom(c *gin.Context) {
	var in services.RoomUpdateInput
	if !bindJSON(c, &in) {
		return
	}
	room, err := s.Rooms.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Room updated successfully", room)
}

func (s *Srv) DeleteRoom(c *gin.Context) {
	room, err := s.Rooms.Delete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Room deleted successfully", room)
}

func (s *Srv) StartRoomRental(c *gin.Context) {
	var in services.RentInput
	if !bindJSON(c, &in) {
		return
	}
	l, err := s.Rooms.StartRental(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Room rented successfully", l)
}

func (s *Srv) EndRoomRental(c *gin.Context) {
	var in services.RentInput
	if !bindJSON(c, &in) {
		return
	}
	l, err := s.Rooms.EndRental(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Room rental ended successfully", l)
}
